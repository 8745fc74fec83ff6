package models

import "time"

// AvailabilityWindow is an explicit, non-recurring block of open time for a
// provider. A zero-length window (start == end) marks a day the provider's
// recurring template must not apply to.
type AvailabilityWindow struct {
	ID         string    `db:"id" json:"id"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	Role       Role      `db:"role" json:"role"`
	Start      time.Time `db:"start_at" json:"start"`
	End        time.Time `db:"end_at" json:"end"`
	LocationID *string   `db:"location_id" json:"location"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AvailabilityWindowFilter narrows explicit-window queries.
type AvailabilityWindowFilter struct {
	Role       Role
	ProviderID string
	Start      time.Time
	End        time.Time

	// When FilterLocation is set, only windows at LocationID are returned
	// (nil LocationID selects remote windows).
	FilterLocation bool
	LocationID     *string
}

// Timespan is a computed free-time interval. It is produced fresh on every
// availability query and never persisted. Exactly one of TutorID/CounselorID
// is set; the counterpart is always null for serializer compatibility.
type Timespan struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	LocationID  *string   `json:"location"`
	TutorID     *string   `json:"tutor"`
	CounselorID *string   `json:"counselor"`
}

// BookedInterval is a span of consumed provider time on the collector's flat,
// de-overlapped timeline.
type BookedInterval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the interval touches [start, end] inclusively.
func (b BookedInterval) Overlaps(start, end time.Time) bool {
	return !b.Start.After(end) && !b.End.Before(start)
}

// Location is a physical site a provider can be available at. A nil location
// reference anywhere in the engine means remote.
type Location struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
