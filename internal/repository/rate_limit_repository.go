package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadcourier/internal/models"
)

type rateLimitRepository struct {
	db *sql.DB
}

// NewRateLimitRepository creates a new rate limit repository
func NewRateLimitRepository(db *sql.DB) RateLimitRepository {
	return &rateLimitRepository{db: db}
}

// Get retrieves the counter row for an organization
func (r *rateLimitRepository) Get(ctx context.Context, orgID string) (*models.RateLimit, error) {
	query := `
		SELECT id, org_id, quota_limit, messages_sent, window_reset_at, throttle_until, last_request_at, updated_at
		FROM rate_limits
		WHERE org_id = $1
	`

	limit := &models.RateLimit{}
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(
		&limit.ID,
		&limit.OrgID,
		&limit.QuotaLimit,
		&limit.MessagesSent,
		&limit.WindowResetAt,
		&limit.ThrottleUntil,
		&limit.LastRequestAt,
		&limit.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit: %w", err)
	}

	return limit, nil
}

// EnsureExists creates the counter row for an organization if missing
func (r *rateLimitRepository) EnsureExists(ctx context.Context, orgID string, quotaLimit int, windowResetAt time.Time) error {
	query := `
		INSERT INTO rate_limits (org_id, quota_limit, messages_sent, window_reset_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (org_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, orgID, quotaLimit, windowResetAt); err != nil {
		return fmt.Errorf("failed to ensure rate limit exists: %w", err)
	}
	return nil
}

// ResetWindowIfExpired zeroes the counter and extends the window, but
// only when the current window has actually passed. The guard in the
// WHERE clause keeps concurrent resets idempotent.
func (r *rateLimitRepository) ResetWindowIfExpired(ctx context.Context, orgID string, now, nextReset time.Time) error {
	query := `
		UPDATE rate_limits
		SET messages_sent = 0, window_reset_at = $3, updated_at = NOW()
		WHERE org_id = $1 AND window_reset_at <= $2
	`

	if _, err := r.db.ExecContext(ctx, query, orgID, now, nextReset); err != nil {
		return fmt.Errorf("failed to reset rate limit window: %w", err)
	}
	return nil
}

// ConsumeQuota increments the counter in a single guarded UPDATE: the
// increment only lands when the counter is below the limit and no
// provider throttle is active. Zero rows affected means the quota check
// failed. This is the atomic check-and-consume the worker pool relies on.
func (r *rateLimitRepository) ConsumeQuota(ctx context.Context, orgID string, now time.Time) (bool, error) {
	query := `
		UPDATE rate_limits
		SET messages_sent = messages_sent + 1, last_request_at = $2, updated_at = NOW()
		WHERE org_id = $1
		AND messages_sent < quota_limit
		AND (throttle_until IS NULL OR throttle_until <= $2)
	`

	result, err := r.db.ExecContext(ctx, query, orgID, now)
	if err != nil {
		return false, fmt.Errorf("failed to consume quota: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// SetThrottleUntil records a provider-imposed throttle, independent of
// the counter.
func (r *rateLimitRepository) SetThrottleUntil(ctx context.Context, orgID string, until time.Time) error {
	query := `
		UPDATE rate_limits
		SET throttle_until = $2, updated_at = NOW()
		WHERE org_id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, orgID, until); err != nil {
		return fmt.Errorf("failed to set throttle: %w", err)
	}
	return nil
}
