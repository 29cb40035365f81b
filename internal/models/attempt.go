package models

import (
	"encoding/json"
	"time"
)

// AttemptOutcome represents the result of a single processing pass
type AttemptOutcome string

const (
	AttemptOutcomeSuccess AttemptOutcome = "success"
	AttemptOutcomeFailed  AttemptOutcome = "failed"
)

// OutboundAttempt is an immutable ledger entry, one per processing pass
// of a message. Attempt numbers are contiguous starting at 1.
type OutboundAttempt struct {
	ID               int             `json:"id" db:"id"`
	OrgID            string          `json:"org_id" db:"org_id"`
	MessageID        int             `json:"message_id" db:"message_id"`
	AttemptNo        int             `json:"attempt_no" db:"attempt_no"`
	Outcome          AttemptOutcome  `json:"outcome" db:"outcome"`
	ErrorCode        *string         `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage     *string         `json:"error_message,omitempty" db:"error_message"`
	ProviderResponse json.RawMessage `json:"provider_response,omitempty" db:"provider_response"`
	NextRetryAt      *time.Time      `json:"next_retry_at,omitempty" db:"next_retry_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}
