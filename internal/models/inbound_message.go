package models

import "time"

// InboundMessage is a customer-initiated message received through the
// provider webhook. The provider message id is unique, which is what
// makes repeated webhook deliveries of the same message a no-op.
type InboundMessage struct {
	ID                int       `json:"id" db:"id"`
	OrgID             string    `json:"org_id" db:"org_id"`
	DossierID         int       `json:"dossier_id" db:"dossier_id"`
	ProviderMessageID string    `json:"provider_message_id" db:"provider_message_id"`
	FromPhone         string    `json:"from_phone" db:"from_phone"`
	Body              string    `json:"body" db:"body"`
	ReceivedAt        time.Time `json:"received_at" db:"received_at"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
