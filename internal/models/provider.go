package models

import "time"

// Role distinguishes the two kinds of availability providers.
type Role string

const (
	RoleTutor     Role = "tutor"
	RoleCounselor Role = "counselor"
)

// Valid reports whether the role is one of the two supported kinds.
func (r Role) Valid() bool {
	return r == RoleTutor || r == RoleCounselor
}

// Counterpart returns the opposite role. Timespans expose both role ids and
// the serializer expects the counterpart to be present (and null).
func (r Role) Counterpart() Role {
	if r == RoleTutor {
		return RoleCounselor
	}
	return RoleTutor
}

// Provider is the tutor or counselor whose open time is being computed.
// It is a closed record: the engine branches on Role, never on the presence
// of optional attributes.
type Provider struct {
	ID       string `db:"id" json:"id"`
	Role     Role   `db:"role" json:"role"`
	Name     string `db:"name" json:"name"`
	Timezone string `db:"timezone" json:"timezone"`

	// When true, remote availability requests include in-person windows too.
	IncludeAllAvailabilityForRemote bool `db:"include_all_availability_for_remote" json:"include_all_availability_for_remote"`

	// Counselor-only capacity settings. Zero/nil for tutors.
	MaxMeetingsPerDay      *int `db:"max_meetings_per_day" json:"max_meetings_per_day"`
	MinutesBetweenMeetings int  `db:"minutes_between_meetings" json:"minutes_between_meetings"`

	// Non-empty when the provider linked an Outlook calendar.
	MicrosoftToken string `db:"microsoft_token" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Location loads the provider's IANA timezone, falling back to UTC when the
// stored identifier is missing or invalid.
func (p *Provider) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BufferMinutes returns the inter-meeting padding applied to booked intervals.
// Only counselors configure one.
func (p *Provider) BufferMinutes() int {
	if p.Role != RoleCounselor {
		return 0
	}
	return p.MinutesBetweenMeetings
}

// DailyMeetingCap returns the max meetings per day, or nil when uncapped.
func (p *Provider) DailyMeetingCap() *int {
	if p.Role != RoleCounselor {
		return nil
	}
	return p.MaxMeetingsPerDay
}

// OutlookLinked reports whether the provider has a synced Outlook calendar.
func (p *Provider) OutlookLinked() bool {
	return p.MicrosoftToken != ""
}
