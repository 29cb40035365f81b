package repository

import (
	"context"
	"database/sql"
	"fmt"

	"leadcourier/internal/models"
)

type attemptRepository struct {
	db *sql.DB
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *sql.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

// Create appends one attempt to the ledger
func (r *attemptRepository) Create(ctx context.Context, attempt *models.OutboundAttempt) error {
	query := `
		INSERT INTO outbound_attempts
			(org_id, message_id, attempt_no, outcome, error_code, error_message, provider_response, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		attempt.OrgID,
		attempt.MessageID,
		attempt.AttemptNo,
		attempt.Outcome,
		attempt.ErrorCode,
		attempt.ErrorMessage,
		jsonArg(attempt.ProviderResponse),
		attempt.NextRetryAt,
	).Scan(&attempt.ID, &attempt.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}

	return nil
}

// ListByMessage retrieves all attempts for a message in attempt order
func (r *attemptRepository) ListByMessage(ctx context.Context, orgID string, messageID int) ([]*models.OutboundAttempt, error) {
	query := `
		SELECT id, org_id, message_id, attempt_no, outcome, error_code, error_message, provider_response, next_retry_at, created_at
		FROM outbound_attempts
		WHERE org_id = $1 AND message_id = $2
		ORDER BY attempt_no ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	attempts := []*models.OutboundAttempt{}
	for rows.Next() {
		attempt := &models.OutboundAttempt{}
		var response []byte
		err := rows.Scan(
			&attempt.ID,
			&attempt.OrgID,
			&attempt.MessageID,
			&attempt.AttemptNo,
			&attempt.Outcome,
			&attempt.ErrorCode,
			&attempt.ErrorMessage,
			&response,
			&attempt.NextRetryAt,
			&attempt.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempt.ProviderResponse = response
		attempts = append(attempts, attempt)
	}

	return attempts, rows.Err()
}
