package models

import (
	"encoding/json"
	"time"
)

// MessageStatus represents valid outbound message statuses
type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
)

// DefaultMaxAttempts is the retry budget applied when a message is
// created without an explicit one.
const DefaultMaxAttempts = 5

// Channel represents valid messaging channels
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// OutboundMessage represents one outgoing message and its attempt series
type OutboundMessage struct {
	ID                int             `json:"id" db:"id"`
	OrgID             string          `json:"org_id" db:"org_id"`
	DossierID         *int            `json:"dossier_id,omitempty" db:"dossier_id"`
	Channel           Channel         `json:"channel" db:"channel"`
	To                string          `json:"to" db:"to_addr"`
	TemplateCode      *string         `json:"template_code,omitempty" db:"template_code"`
	Body              *string         `json:"body,omitempty" db:"body"`
	Payload           json.RawMessage `json:"payload,omitempty" db:"payload_json"`
	IdempotencyKey    string          `json:"idempotency_key" db:"idempotency_key"`
	Status            MessageStatus   `json:"status" db:"status"`
	AttemptCount      int             `json:"attempt_count" db:"attempt_count"`
	MaxAttempts       int             `json:"max_attempts" db:"max_attempts"`
	LastErrorCode     *string         `json:"last_error_code,omitempty" db:"last_error_code"`
	LastErrorMessage  *string         `json:"last_error_message,omitempty" db:"last_error_message"`
	ProviderMessageID *string         `json:"provider_message_id,omitempty" db:"provider_message_id"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the message has reached a final status
func (m *OutboundMessage) IsTerminal() bool {
	return m.Status == MessageStatusDelivered || m.Status == MessageStatusFailed
}

// HasTemplate reports whether the message carries a template code
func (m *OutboundMessage) HasTemplate() bool {
	return m.TemplateCode != nil && *m.TemplateCode != ""
}

// AttemptsExhausted reports whether the retry budget is used up
func (m *OutboundMessage) AttemptsExhausted() bool {
	return m.AttemptCount >= m.MaxAttempts
}
