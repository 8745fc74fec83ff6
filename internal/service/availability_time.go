package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/schoolnet/availability-api/pkg/errors"
)

// dayKeyLayout keys calendar days when deciding which days already carry
// explicit availability and which days are blacked out.
const dayKeyLayout = "06-01-02"

// clockTime is a parsed "HH:MM" wall-clock value. hour may be 24 to encode
// "end of day".
type clockTime struct {
	hour   int
	minute int
}

func (c clockTime) before(other clockTime) bool {
	if c.hour != other.hour {
		return c.hour < other.hour
	}
	return c.minute < other.minute
}

// parseClockTime parses "HH:MM" (or "H:MM"). "24:00" is legal and means
// midnight at the end of the day.
func parseClockTime(raw string) (clockTime, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return clockTime{}, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("invalid time: %s", raw))
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return clockTime{}, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("invalid time: %s", raw))
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return clockTime{}, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("invalid time: %s", raw))
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return clockTime{}, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("invalid time: %s", raw))
	}
	return clockTime{hour: hour, minute: minute}, nil
}

// reinterpretWallClock rebuilds an instant's UTC wall-clock reading in the
// given timezone. All-day calendar events arrive as naive day boundaries and
// must be anchored to the provider's local days.
func reinterpretWallClock(t time.Time, loc *time.Location) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, loc)
}

func equalLocation(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
