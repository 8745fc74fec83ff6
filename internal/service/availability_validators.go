package service

import (
	"fmt"
	"sort"
	"time"

	appErrors "github.com/schoolnet/availability-api/pkg/errors"
)

// ValidateDaySchedule checks that the proposed windows for one day neither
// overlap each other nor spill past the day boundary in the client's zone.
// Exactly-abutting windows are legal; they merge during the scan. The bool
// result carries the user-facing verdict, the error only parse failures.
func ValidateDaySchedule(day time.Time, windows []DayWindowInput, loc *time.Location) (bool, string, error) {
	if len(windows) == 0 {
		return true, "", nil
	}

	type interval struct {
		start time.Time
		end   time.Time
	}
	intervals := make([]interval, 0, len(windows))
	for _, w := range windows {
		start, err := time.Parse(time.RFC3339, w.Start)
		if err != nil {
			return false, "", appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("invalid datetime: %s", w.Start))
		}
		end, err := time.Parse(time.RFC3339, w.End)
		if err != nil {
			return false, "", appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("invalid datetime: %s", w.End))
		}
		intervals = append(intervals, interval{start: start, end: end})
	}

	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].start.Equal(intervals[j].start) {
			return intervals[i].end.Before(intervals[j].end)
		}
		return intervals[i].start.Before(intervals[j].start)
	})

	merged := intervals[0]
	for _, next := range intervals[1:] {
		if next.start.Before(merged.end) {
			return false, fmt.Sprintf("Overlapping availabilities at %s > %s",
				merged.end.In(loc).Format(time.RFC3339), next.start.In(loc).Format(time.RFC3339)), nil
		}
		if next.end.After(merged.end) {
			merged.end = next.end
		}
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	if intervals[0].start.Before(dayStart) || merged.end.After(dayStart.Add(24*time.Hour)) {
		return false, "Dates span multiple days", nil
	}
	return true, "", nil
}
