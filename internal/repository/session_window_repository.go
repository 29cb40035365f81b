package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadcourier/internal/models"
)

type sessionWindowRepository struct {
	db *sql.DB
}

// NewSessionWindowRepository creates a new session window repository
func NewSessionWindowRepository(db *sql.DB) SessionWindowRepository {
	return &sessionWindowRepository{db: db}
}

// Get retrieves the window for an (org, phone) pair
func (r *sessionWindowRepository) Get(ctx context.Context, orgID, phoneNumber string) (*models.SessionWindow, error) {
	query := `
		SELECT id, org_id, phone_number, last_inbound_at, window_opens_at, window_expires_at, last_outbound_at, updated_at
		FROM session_windows
		WHERE org_id = $1 AND phone_number = $2
	`

	window := &models.SessionWindow{}
	err := r.db.QueryRowContext(ctx, query, orgID, phoneNumber).Scan(
		&window.ID,
		&window.OrgID,
		&window.PhoneNumber,
		&window.LastInboundAt,
		&window.WindowOpensAt,
		&window.WindowExpires,
		&window.LastOutboundAt,
		&window.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session window: %w", err)
	}

	return window, nil
}

// Upsert writes the window state, last-writer-wins per (org, phone)
func (r *sessionWindowRepository) Upsert(ctx context.Context, window *models.SessionWindow) error {
	query := `
		INSERT INTO session_windows (org_id, phone_number, last_inbound_at, window_opens_at, window_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (org_id, phone_number) DO UPDATE
		SET last_inbound_at = EXCLUDED.last_inbound_at,
			window_opens_at = EXCLUDED.window_opens_at,
			window_expires_at = EXCLUDED.window_expires_at,
			updated_at = NOW()
		RETURNING id, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		window.OrgID,
		window.PhoneNumber,
		window.LastInboundAt,
		window.WindowOpensAt,
		window.WindowExpires,
	).Scan(&window.ID, &window.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert session window: %w", err)
	}

	return nil
}

// TouchOutbound updates the last-outbound marker only; expiry is never
// affected by outbound sends.
func (r *sessionWindowRepository) TouchOutbound(ctx context.Context, orgID, phoneNumber string, at time.Time) error {
	query := `
		UPDATE session_windows
		SET last_outbound_at = $3, updated_at = NOW()
		WHERE org_id = $1 AND phone_number = $2
	`

	if _, err := r.db.ExecContext(ctx, query, orgID, phoneNumber, at); err != nil {
		return fmt.Errorf("failed to record outbound message: %w", err)
	}
	return nil
}
