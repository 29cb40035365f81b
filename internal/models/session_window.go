package models

import "time"

// SessionWindowDuration is the messaging-eligibility period opened by
// an inbound customer message.
const SessionWindowDuration = 24 * time.Hour

// SessionWindow tracks the 24-hour messaging-eligibility window for one
// (org, phone) pair. Freeform messages may only be sent while the
// window is open; template messages are always allowed.
type SessionWindow struct {
	ID             int        `json:"id" db:"id"`
	OrgID          string     `json:"org_id" db:"org_id"`
	PhoneNumber    string     `json:"phone_number" db:"phone_number"`
	LastInboundAt  time.Time  `json:"last_inbound_at" db:"last_inbound_at"`
	WindowOpensAt  time.Time  `json:"window_opens_at" db:"window_opens_at"`
	WindowExpires  time.Time  `json:"window_expires_at" db:"window_expires_at"`
	LastOutboundAt *time.Time `json:"last_outbound_at,omitempty" db:"last_outbound_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// IsOpen reports whether the window is open at the given instant
func (w *SessionWindow) IsOpen(now time.Time) bool {
	return now.Before(w.WindowExpires)
}
