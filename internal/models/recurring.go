package models

import "time"

// Trimester partitions the calendar year into the three stretches a provider
// can keep distinct weekly templates for.
type Trimester string

const (
	TrimesterSpring Trimester = "spring"
	TrimesterSummer Trimester = "summer"
	TrimesterFall   Trimester = "fall"
)

// Month boundaries for the trimester partition. Spring runs January through
// May, summer June through August, fall September through December.
const (
	summerStartMonth = time.June
	fallStartMonth   = time.September
)

// Trimesters lists all trimesters in validation order.
var Trimesters = []Trimester{TrimesterFall, TrimesterSpring, TrimesterSummer}

// TrimesterForDate maps a date to the trimester its month falls in.
func TrimesterForDate(t time.Time) Trimester {
	switch {
	case t.Month() >= fallStartMonth:
		return TrimesterFall
	case t.Month() >= summerStartMonth:
		return TrimesterSummer
	default:
		return TrimesterSpring
	}
}

// OrderedWeekdays lists weekday keys Monday-first, matching how weekly
// templates are authored and stored.
var OrderedWeekdays = []string{
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
	"sunday",
}

// WeekdayKey returns the Monday-first weekday key for a date.
func WeekdayKey(t time.Time) string {
	return OrderedWeekdays[(int(t.Weekday())+6)%7]
}

// ClockSpan is a wall-clock span inside a single day, "HH:MM" strings.
// The end of the last span of a day may be "24:00", meaning midnight.
type ClockSpan struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklySchedule holds recurring spans per trimester and weekday.
type WeeklySchedule map[Trimester]map[string][]ClockSpan

// LocationSchedule holds the default location per trimester and weekday.
// A nil entry means the provider works remotely that day.
type LocationSchedule map[Trimester]map[string]*string

// DefaultWeeklySchedule builds an empty schedule with every key present.
func DefaultWeeklySchedule() WeeklySchedule {
	schedule := make(WeeklySchedule, len(Trimesters))
	for _, trimester := range Trimesters {
		days := make(map[string][]ClockSpan, len(OrderedWeekdays))
		for _, day := range OrderedWeekdays {
			days[day] = []ClockSpan{}
		}
		schedule[trimester] = days
	}
	return schedule
}

// DefaultLocationSchedule builds an all-remote location schedule.
func DefaultLocationSchedule() LocationSchedule {
	locations := make(LocationSchedule, len(Trimesters))
	for _, trimester := range Trimesters {
		days := make(map[string]*string, len(OrderedWeekdays))
		for _, day := range OrderedWeekdays {
			days[day] = nil
		}
		locations[trimester] = days
	}
	return locations
}

// RecurringAvailability is a provider's weekly recurring template. At most one
// exists per provider; it is created lazily on first access.
type RecurringAvailability struct {
	ID         string           `db:"id" json:"id"`
	ProviderID string           `db:"provider_id" json:"provider_id"`
	Role       Role             `db:"role" json:"role"`
	Schedule   WeeklySchedule   `json:"availability"`
	Locations  LocationSchedule `json:"locations"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// ScheduleForDate returns the weekday spans for the date's trimester.
func (r *RecurringAvailability) ScheduleForDate(t time.Time) []ClockSpan {
	days, ok := r.Schedule[TrimesterForDate(t)]
	if !ok {
		return nil
	}
	return days[WeekdayKey(t)]
}

// LocationForDate returns the template location for the date's trimester and
// weekday, nil meaning remote.
func (r *RecurringAvailability) LocationForDate(t time.Time) *string {
	days, ok := r.Locations[TrimesterForDate(t)]
	if !ok {
		return nil
	}
	return days[WeekdayKey(t)]
}
