package models

import "time"

// DefaultQuotaLimit is applied to organizations without an explicit
// messaging tier.
const DefaultQuotaLimit = 1000

// DefaultQuotaWindow is the rolling window for the per-org counter.
const DefaultQuotaWindow = 24 * time.Hour

// TierQuotaLimits maps provider messaging tiers to daily quota limits.
var TierQuotaLimits = map[int]int{
	1: 1000,
	2: 10000,
	3: 100000,
	4: int(^uint(0) >> 1),
}

// RateLimit is the per-org quota counter for a rolling window, plus an
// optional throttle set when the provider itself signals rate limiting.
type RateLimit struct {
	ID            int        `json:"id" db:"id"`
	OrgID         string     `json:"org_id" db:"org_id"`
	QuotaLimit    int        `json:"quota_limit" db:"quota_limit"`
	MessagesSent  int        `json:"messages_sent" db:"messages_sent"`
	WindowResetAt time.Time  `json:"window_reset_at" db:"window_reset_at"`
	ThrottleUntil *time.Time `json:"throttle_until,omitempty" db:"throttle_until"`
	LastRequestAt *time.Time `json:"last_request_at,omitempty" db:"last_request_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// IsThrottled reports whether a provider-imposed throttle is active
func (r *RateLimit) IsThrottled(now time.Time) bool {
	return r.ThrottleUntil != nil && now.Before(*r.ThrottleUntil)
}

// QuotaStatus is a read-only snapshot for observability
type QuotaStatus struct {
	OrgID         string    `json:"org_id"`
	MessagesSent  int       `json:"messages_sent"`
	QuotaLimit    int       `json:"quota_limit"`
	Remaining     int       `json:"remaining"`
	Throttled     bool      `json:"throttled"`
	WindowResetAt time.Time `json:"window_reset_at"`
}
