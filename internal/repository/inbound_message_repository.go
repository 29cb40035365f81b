package repository

import (
	"context"
	"database/sql"
	"fmt"

	"leadcourier/internal/models"
)

type inboundMessageRepository struct {
	db *sql.DB
}

// NewInboundMessageRepository creates a new inbound message repository
func NewInboundMessageRepository(db *sql.DB) InboundMessageRepository {
	return &inboundMessageRepository{db: db}
}

// ExistsByProviderMessageID reports whether the provider message id has
// already been recorded, which deduplicates repeated webhook deliveries.
func (r *inboundMessageRepository) ExistsByProviderMessageID(ctx context.Context, providerMessageID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM inbound_messages WHERE provider_message_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, providerMessageID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check inbound message: %w", err)
	}

	return exists, nil
}

// Create records one inbound message
func (r *inboundMessageRepository) Create(ctx context.Context, message *models.InboundMessage) error {
	query := `
		INSERT INTO inbound_messages (org_id, dossier_id, provider_message_id, from_phone, body, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		message.OrgID,
		message.DossierID,
		message.ProviderMessageID,
		message.FromPhone,
		message.Body,
		message.ReceivedAt,
	).Scan(&message.ID, &message.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create inbound message: %w", err)
	}

	return nil
}
