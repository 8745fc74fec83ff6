package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/schoolnet/availability-api/internal/models"
	appErrors "github.com/schoolnet/availability-api/pkg/errors"
)

// collectBooked gathers everything consuming the provider's time in
// [start, end] (local sessions plus synced Outlook events) as a flat,
// sorted, non-overlapping timeline.
func (s *AvailabilityService) collectBooked(ctx context.Context, provider *models.Provider, start, end time.Time) ([]models.BookedInterval, error) {
	sessions, err := s.sessions.ListOverlapping(ctx, provider.Role, provider.ID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list booked sessions")
	}

	buffer := time.Duration(provider.BufferMinutes()) * time.Minute
	intervals := make([]models.BookedInterval, 0, len(sessions))
	imported := make(map[string]bool)
	for _, session := range sessions {
		if session.OutlookEventID != nil && *session.OutlookEventID != "" {
			imported[*session.OutlookEventID] = true
		}
		sessionStart := session.Start
		sessionEnd := session.End
		if buffer > 0 {
			// Counselor buffer blocks bookings adjacent to existing meetings;
			// padding both ends over-blocks on purpose.
			sessionStart = sessionStart.Add(-buffer)
			sessionEnd = sessionEnd.Add(buffer)
		}
		intervals = append(intervals, models.BookedInterval{
			Start: sessionStart.Truncate(time.Minute),
			End:   sessionEnd.Truncate(time.Minute),
		})
	}

	intervals = append(intervals, s.outlookIntervals(ctx, provider, start, end, imported)...)

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start.Before(intervals[j].Start) })

	// Single sweep: extend the previous interval over any overlap that
	// follows it. Adjacent intervals stay separate.
	merged := make([]models.BookedInterval, 0, len(intervals))
	for _, interval := range intervals {
		if n := len(merged); n > 0 && interval.Start.Before(merged[n-1].End) {
			if interval.End.After(merged[n-1].End) {
				merged[n-1].End = interval.End
			}
			continue
		}
		merged = append(merged, interval)
	}
	return merged, nil
}

// outlookIntervals fetches externally synced events. A failing fetch degrades
// to zero events; availability computation never fails on calendar trouble.
func (s *AvailabilityService) outlookIntervals(ctx context.Context, provider *models.Provider, start, end time.Time, imported map[string]bool) []models.BookedInterval {
	if s.calendar == nil || !provider.OutlookLinked() {
		return nil
	}

	events, err := s.calendar.FetchEvents(ctx, provider, start, end)
	if err != nil {
		s.logger.Warn("outlook fetch failed, continuing without external events",
			zap.String("provider_id", provider.ID),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.ObserveOutlookFetch(false)
		}
		return nil
	}
	if s.metrics != nil {
		s.metrics.ObserveOutlookFetch(true)
	}

	loc := provider.Location()
	intervals := make([]models.BookedInterval, 0, len(events))
	for _, event := range events {
		if imported[event.ExternalID] {
			continue
		}
		eventStart := event.Start
		eventEnd := event.End
		if event.IsAllDay {
			eventStart = reinterpretWallClock(eventStart, loc)
			eventEnd = reinterpretWallClock(eventEnd, loc)
		}
		intervals = append(intervals, models.BookedInterval{Start: eventStart, End: eventEnd})
	}
	return intervals
}

// subtractBooked removes every booked interval from the candidate spans,
// emitting only strictly non-empty gaps.
func subtractBooked(spans []models.Timespan, booked []models.BookedInterval, loc *time.Location) []models.Timespan {
	if len(booked) == 0 {
		return spans
	}

	out := make([]models.Timespan, 0, len(spans))
	for _, span := range spans {
		cursor := span.Start
		for _, interval := range booked {
			if !interval.Overlaps(span.Start, span.End) {
				continue
			}
			if interval.Start.After(cursor) {
				fragment := span
				fragment.Start = cursor.In(loc)
				fragment.End = interval.Start.In(loc)
				out = append(out, fragment)
			}
			cursor = interval.End
		}
		if cursor.Before(span.End) {
			fragment := span
			fragment.Start = cursor.In(loc)
			fragment.End = span.End.In(loc)
			out = append(out, fragment)
		}
	}
	return out
}

// adjoinSpans merges exactly-abutting spans in one forward scan. Spans at
// different locations merge too unless cross-location joining is disabled.
func adjoinSpans(spans []models.Timespan, joinCrossLocation bool) []models.Timespan {
	out := make([]models.Timespan, 0, len(spans))
	for _, span := range spans {
		if n := len(out); n > 0 && out[n-1].End.Equal(span.Start) &&
			(joinCrossLocation || equalLocation(out[n-1].LocationID, span.LocationID)) {
			out[n-1].End = span.End
			continue
		}
		out = append(out, span)
	}
	return out
}

// applyDailyCap removes every span starting on a day where a counselor has
// already reached their meeting cap. The whole day is blacked out, not just
// the booked portion.
func (s *AvailabilityService) applyDailyCap(ctx context.Context, provider *models.Provider, start, end time.Time, spans []models.Timespan) ([]models.Timespan, error) {
	dailyCap := provider.DailyMeetingCap()
	if dailyCap == nil {
		return spans, nil
	}

	meetings, err := s.sessions.ListStartingBetween(ctx, provider.Role, provider.ID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count meetings per day")
	}

	loc := provider.Location()
	perDay := make(map[string]int)
	for _, meeting := range meetings {
		perDay[meeting.Start.In(loc).Format(dayKeyLayout)]++
	}

	blackout := make(map[string]bool)
	for day, count := range perDay {
		if count >= *dailyCap {
			blackout[day] = true
		}
	}
	if len(blackout) == 0 {
		return spans, nil
	}

	out := make([]models.Timespan, 0, len(spans))
	for _, span := range spans {
		if blackout[span.Start.In(loc).Format(dayKeyLayout)] {
			continue
		}
		out = append(out, span)
	}
	return out, nil
}
