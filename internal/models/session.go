package models

import "time"

// Session is a locally scheduled tutoring session or counselor meeting,
// anything already booked against the provider that consumes their time.
type Session struct {
	ID             string    `db:"id" json:"id"`
	ProviderID     string    `db:"provider_id" json:"provider_id"`
	Role           Role      `db:"role" json:"role"`
	Start          time.Time `db:"start_at" json:"start"`
	End            time.Time `db:"end_at" json:"end"`
	Cancelled      bool      `db:"cancelled" json:"cancelled"`
	OutlookEventID *string   `db:"outlook_event_id" json:"outlook_event_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// OutlookEvent is a calendar event fetched from the external calendar
// collaborator. All-day events carry day-boundary wall-clock times that must
// be reinterpreted in the provider's timezone.
type OutlookEvent struct {
	ExternalID string    `json:"id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	IsAllDay   bool      `json:"is_all_day"`
}
