package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/schoolnet/availability-api/internal/models"
	appErrors "github.com/schoolnet/availability-api/pkg/errors"
)

// materialize expands [q.Start, q.End] into concrete candidate timespans:
// explicit windows first, then spans synthesized from the recurring template
// for days that carry no explicit coverage.
func (s *AvailabilityService) materialize(ctx context.Context, provider *models.Provider, q AvailabilityQuery) ([]models.Timespan, error) {
	loc := provider.Location()
	includeAll := q.AllLocationsAndRemote || (provider.IncludeAllAvailabilityForRemote && q.LocationID == nil)

	windows, err := s.windows.ListOverlapping(ctx, models.AvailabilityWindowFilter{
		Role:           provider.Role,
		ProviderID:     provider.ID,
		Start:          q.Start,
		End:            q.End,
		FilterLocation: !includeAll,
		LocationID:     q.LocationID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability windows")
	}

	spans := make([]models.Timespan, 0, len(windows))
	covered := make(map[string]bool, len(windows))
	for _, window := range windows {
		start := window.Start.In(loc)
		end := window.End.In(loc)
		covered[start.Format(dayKeyLayout)] = true
		// Zero-length windows only mark their day as covered.
		if !start.Before(end) {
			continue
		}
		spans = append(spans, newTimespan(provider, start, end, window.LocationID))
	}

	template, created, err := s.recurring.GetOrCreate(ctx, provider)
	if err != nil {
		return nil, err
	}

	// A template created just now is empty; nothing to synthesize from it.
	if q.UseRecurring && !created {
		for day := q.Start; day.Before(q.End); day = day.Add(24 * time.Hour) {
			if covered[day.Format(dayKeyLayout)] {
				continue
			}
			spans = append(spans, s.synthesizeDay(provider, template, day, covered, includeAll, q.LocationID)...)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start.Before(spans[j].Start) })

	// Windows ending at :59 are a storage workaround for "ends on the hour";
	// nudge them forward a minute.
	for i := range spans {
		if spans[i].End.Minute() == 59 {
			spans[i].End = spans[i].End.Add(time.Minute)
		}
	}

	return spans, nil
}

// synthesizeDay expands the recurring template's spans for one calendar day.
// Template times are authored as UTC wall-clock values and converted into the
// provider's timezone here.
func (s *AvailabilityService) synthesizeDay(provider *models.Provider, template *models.RecurringAvailability, day time.Time, covered map[string]bool, includeAll bool, locationID *string) []models.Timespan {
	loc := provider.Location()
	trimester := models.TrimesterForDate(day)

	var spans []models.Timespan
	for _, span := range template.ScheduleForDate(day) {
		start, err := parseClockTime(span.Start)
		if err != nil {
			s.logger.Warn("skipping unparsable recurring span",
				zap.String("provider_id", provider.ID),
				zap.String("start", span.Start))
			continue
		}
		end, err := parseClockTime(span.End)
		if err != nil {
			s.logger.Warn("skipping unparsable recurring span",
				zap.String("provider_id", provider.ID),
				zap.String("end", span.End))
			continue
		}

		// time.Date normalizes hour 24 ("ends at midnight") to the next day.
		spanStart := time.Date(day.Year(), day.Month(), day.Day(), start.hour, start.minute, 0, 0, time.UTC).In(loc)
		spanEnd := time.Date(day.Year(), day.Month(), day.Day(), end.hour, end.minute, 0, 0, time.UTC).In(loc)

		// Templates are authored against a fixed UTC wall clock, so a span
		// materialized after a fall-back transition lands an hour early in
		// local terms; push it forward. The matching spring-forward shift has
		// never been active and stays off pending product confirmation.
		if trimester == models.TrimesterFall && !spanStart.IsDST() {
			spanStart = spanStart.Add(time.Hour)
			spanEnd = spanEnd.Add(time.Hour)
		}

		// Timezone math can move a synthesized span onto a day that already
		// has explicit coverage; drop it rather than double-covering the day.
		if covered[spanStart.Format(dayKeyLayout)] {
			continue
		}

		templateLocation := template.LocationForDate(spanEnd)
		if !includeAll && !equalLocation(templateLocation, locationID) {
			continue
		}

		spans = append(spans, newTimespan(provider, spanStart, spanEnd, templateLocation))
	}
	return spans
}

func newTimespan(provider *models.Provider, start, end time.Time, locationID *string) models.Timespan {
	span := models.Timespan{Start: start, End: end, LocationID: locationID}
	id := provider.ID
	if provider.Role == models.RoleTutor {
		span.TutorID = &id
	} else {
		span.CounselorID = &id
	}
	return span
}
