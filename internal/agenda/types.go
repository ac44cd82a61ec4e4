package agenda

import "time"

// Kind distinguishes the two user-facing commitment flavors.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindMeeting  Kind = "meeting"
)

// Status is the commitment lifecycle state.
//
// pending -> fired (dispatch delivered the notification)
// pending -> cancelled (user cancel)
//
// Both fired and cancelled are terminal; there is no way back.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFired     Status = "fired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool { return s == StatusFired || s == StatusCancelled }

// Commitment is the unit of work scheduled: one notification, once.
// Keep it compact and schema-stable; the file store serializes it as-is.
type Commitment struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	FireAt    time.Time `json:"fire_at"`
	Status    Status    `json:"status"`
}
