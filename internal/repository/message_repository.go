package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leadcourier/internal/models"
)

type messageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, org_id, dossier_id, channel, to_addr, template_code, body, payload_json,
	idempotency_key, status, attempt_count, max_attempts, last_error_code, last_error_message,
	provider_message_id, created_at, updated_at`

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

// jsonArg converts a raw payload for a jsonb parameter. A nil slice
// becomes a SQL NULL; otherwise the bytes are sent as text so the
// driver does not encode them as bytea.
func jsonArg(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func scanMessage(row interface{ Scan(...interface{}) error }, m *models.OutboundMessage) error {
	var payload []byte
	err := row.Scan(
		&m.ID,
		&m.OrgID,
		&m.DossierID,
		&m.Channel,
		&m.To,
		&m.TemplateCode,
		&m.Body,
		&payload,
		&m.IdempotencyKey,
		&m.Status,
		&m.AttemptCount,
		&m.MaxAttempts,
		&m.LastErrorCode,
		&m.LastErrorMessage,
		&m.ProviderMessageID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	m.Payload = payload
	return nil
}

// Create inserts a new outbound message. If a message with the same
// (org_id, idempotency_key) already exists, the existing row is loaded
// into message unchanged and created is false.
func (r *messageRepository) Create(ctx context.Context, message *models.OutboundMessage) (bool, error) {
	insert := `
		INSERT INTO outbound_messages
			(org_id, dossier_id, channel, to_addr, template_code, body, payload_json, idempotency_key, status, attempt_count, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (org_id, idempotency_key) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		insert,
		message.OrgID,
		message.DossierID,
		message.Channel,
		message.To,
		message.TemplateCode,
		message.Body,
		jsonArg(message.Payload),
		message.IdempotencyKey,
		message.Status,
		message.AttemptCount,
		message.MaxAttempts,
	).Scan(&message.ID, &message.CreatedAt, &message.UpdatedAt)

	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to create message: %w", err)
	}

	// Conflict: load the existing row for the idempotency key.
	existing, err := r.GetByIdempotencyKey(ctx, message.OrgID, message.IdempotencyKey)
	if err != nil {
		return false, fmt.Errorf("failed to load existing message: %w", err)
	}
	*message = *existing
	return false, nil
}

// GetByIdempotencyKey retrieves the message holding an idempotency key,
// scoped to the organization. Returns sql.ErrNoRows when the key is
// unused.
func (r *messageRepository) GetByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (*models.OutboundMessage, error) {
	query := fmt.Sprintf(`SELECT %s FROM outbound_messages WHERE org_id = $1 AND idempotency_key = $2`, messageColumns)

	message := &models.OutboundMessage{}
	err := scanMessage(r.db.QueryRowContext(ctx, query, orgID, idempotencyKey), message)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message by idempotency key: %w", err)
	}

	return message, nil
}

// GetByID retrieves a message by ID, scoped to the organization
func (r *messageRepository) GetByID(ctx context.Context, orgID string, id int) (*models.OutboundMessage, error) {
	query := fmt.Sprintf(`SELECT %s FROM outbound_messages WHERE org_id = $1 AND id = $2`, messageColumns)

	message := &models.OutboundMessage{}
	err := scanMessage(r.db.QueryRowContext(ctx, query, orgID, id), message)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return message, nil
}

// GetByProviderMessageID retrieves a message by its provider-assigned
// id, scoped to the organization. A mismatched org behaves as not found.
func (r *messageRepository) GetByProviderMessageID(ctx context.Context, orgID, providerMessageID string) (*models.OutboundMessage, error) {
	query := fmt.Sprintf(`SELECT %s FROM outbound_messages WHERE org_id = $1 AND provider_message_id = $2`, messageColumns)

	message := &models.OutboundMessage{}
	err := scanMessage(r.db.QueryRowContext(ctx, query, orgID, providerMessageID), message)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message by provider id: %w", err)
	}

	return message, nil
}

// Claim atomically moves a queued message to sending and returns it.
// Returns sql.ErrNoRows when another worker already holds the message
// or the message is no longer queued.
func (r *messageRepository) Claim(ctx context.Context, id int) (*models.OutboundMessage, error) {
	query := fmt.Sprintf(`
		UPDATE outbound_messages
		SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status = 'queued'
		RETURNING %s
	`, messageColumns)

	message := &models.OutboundMessage{}
	err := scanMessage(r.db.QueryRowContext(ctx, query, id), message)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim message: %w", err)
	}

	return message, nil
}

// Release returns a sending message to the queue without recording an
// attempt, used when processing could not start.
func (r *messageRepository) Release(ctx context.Context, id int) error {
	query := `
		UPDATE outbound_messages
		SET status = 'queued', updated_at = NOW()
		WHERE id = $1 AND status = 'sending'
	`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release message: %w", err)
	}
	return nil
}

// UpdateOnSuccess marks a message sent, stores the provider message id
// (set exactly once, never cleared) and clears the error fields.
func (r *messageRepository) UpdateOnSuccess(ctx context.Context, id int, attemptCount int, providerMessageID string) error {
	query := `
		UPDATE outbound_messages
		SET status = 'sent',
			attempt_count = $2,
			provider_message_id = COALESCE(provider_message_id, $3),
			last_error_code = NULL,
			last_error_message = NULL,
			updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, attemptCount, providerMessageID); err != nil {
		return fmt.Errorf("failed to update message success: %w", err)
	}
	return nil
}

// UpdateOnFailure records the outcome of a failed processing pass
func (r *messageRepository) UpdateOnFailure(ctx context.Context, id int, status models.MessageStatus, attemptCount int, errorCode, errorMessage string) error {
	query := `
		UPDATE outbound_messages
		SET status = $2,
			attempt_count = $3,
			last_error_code = $4,
			last_error_message = $5,
			updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, status, attemptCount, errorCode, errorMessage); err != nil {
		return fmt.Errorf("failed to update message failure: %w", err)
	}
	return nil
}

// UpdateStatus sets the status and error fields, used by the webhook
// ingestor for delivery callbacks.
func (r *messageRepository) UpdateStatus(ctx context.Context, id int, status models.MessageStatus, errorCode, errorMessage *string) error {
	query := `
		UPDATE outbound_messages
		SET status = $2, last_error_code = $3, last_error_message = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, errorCode, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// FindDue retrieves queued messages eligible for processing: those with
// no scheduled retry, or whose latest attempt's next_retry_at has
// passed. Retry scheduling is cooperative; workers poll this query.
func (r *messageRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*models.OutboundMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM outbound_messages m
		WHERE m.status = 'queued'
		AND m.attempt_count < m.max_attempts
		AND NOT EXISTS (
			SELECT 1 FROM outbound_attempts a
			WHERE a.message_id = m.id
			AND a.next_retry_at IS NOT NULL
			AND a.next_retry_at > $1
			AND a.attempt_no = m.attempt_count
		)
		ORDER BY m.created_at ASC
		LIMIT $2
	`, prefixColumns("m", messageColumns))

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find due messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.OutboundMessage{}
	for rows.Next() {
		message := &models.OutboundMessage{}
		if err := scanMessage(rows, message); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

// RecoverStale returns messages stuck in sending (e.g. after a worker
// crash) back to the queue. Returns the number of recovered rows.
func (r *messageRepository) RecoverStale(ctx context.Context, olderThan time.Time) (int, error) {
	query := `
		UPDATE outbound_messages
		SET status = 'queued', updated_at = NOW()
		WHERE status = 'sending' AND updated_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale messages: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// CountDeadLetters counts terminal failures that exhausted their retry
// budget, across all organizations.
func (r *messageRepository) CountDeadLetters(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*) FROM outbound_messages
		WHERE status = 'failed' AND attempt_count >= max_attempts
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}

	return count, nil
}
