package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimesterForDateBoundaries(t *testing.T) {
	cases := []struct {
		month time.Month
		want  Trimester
	}{
		{time.January, TrimesterSpring},
		{time.May, TrimesterSpring},
		{time.June, TrimesterSummer},
		{time.August, TrimesterSummer},
		{time.September, TrimesterFall},
		{time.December, TrimesterFall},
	}
	for _, tc := range cases {
		date := time.Date(2026, tc.month, 15, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, tc.want, TrimesterForDate(date), "month %s", tc.month)
	}
}

func TestWeekdayKeyMondayFirst(t *testing.T) {
	// 2026-02-02 is a Monday.
	monday := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	for i, want := range OrderedWeekdays {
		assert.Equal(t, want, WeekdayKey(monday.AddDate(0, 0, i)))
	}
	assert.Equal(t, "sunday", WeekdayKey(monday.AddDate(0, 0, -1)))
}

func TestDefaultSchedulesCoverEveryKey(t *testing.T) {
	schedule := DefaultWeeklySchedule()
	locations := DefaultLocationSchedule()
	require.Len(t, schedule, len(Trimesters))
	for _, trimester := range Trimesters {
		require.Len(t, schedule[trimester], len(OrderedWeekdays))
		for _, day := range OrderedWeekdays {
			assert.NotNil(t, schedule[trimester][day])
			assert.Empty(t, schedule[trimester][day])
			_, ok := locations[trimester][day]
			assert.True(t, ok)
		}
	}
}

func TestScheduleForDatePicksTrimesterAndWeekday(t *testing.T) {
	record := &RecurringAvailability{
		Schedule:  DefaultWeeklySchedule(),
		Locations: DefaultLocationSchedule(),
	}
	span := ClockSpan{Start: "09:00", End: "12:00"}
	record.Schedule[TrimesterFall]["wednesday"] = []ClockSpan{span}
	campus := "loc-1"
	record.Locations[TrimesterFall]["wednesday"] = &campus

	// 2026-10-07 is a Wednesday in the fall trimester.
	date := time.Date(2026, 10, 7, 0, 0, 0, 0, time.UTC)
	spans := record.ScheduleForDate(date)
	require.Len(t, spans, 1)
	assert.Equal(t, span, spans[0])
	require.NotNil(t, record.LocationForDate(date))
	assert.Equal(t, "loc-1", *record.LocationForDate(date))

	// The same weekday in spring stays empty.
	assert.Empty(t, record.ScheduleForDate(time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, record.LocationForDate(time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)))
}

func TestProviderHelpers(t *testing.T) {
	dailyCap := 5
	counselor := &Provider{
		Role:                   RoleCounselor,
		Timezone:               "America/New_York",
		MaxMeetingsPerDay:      &dailyCap,
		MinutesBetweenMeetings: 15,
		MicrosoftToken:         "token",
	}
	assert.Equal(t, 15, counselor.BufferMinutes())
	require.NotNil(t, counselor.DailyMeetingCap())
	assert.Equal(t, 5, *counselor.DailyMeetingCap())
	assert.True(t, counselor.OutlookLinked())
	assert.Equal(t, "America/New_York", counselor.Location().String())

	tutor := &Provider{Role: RoleTutor, MaxMeetingsPerDay: &dailyCap, MinutesBetweenMeetings: 15}
	assert.Zero(t, tutor.BufferMinutes())
	assert.Nil(t, tutor.DailyMeetingCap())
	assert.False(t, tutor.OutlookLinked())
	assert.Equal(t, time.UTC, tutor.Location())

	invalidZone := &Provider{Role: RoleTutor, Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, invalidZone.Location())

	assert.Equal(t, RoleCounselor, RoleTutor.Counterpart())
	assert.Equal(t, RoleTutor, RoleCounselor.Counterpart())
	assert.True(t, RoleTutor.Valid())
	assert.False(t, Role("teacher").Valid())
}
