package repository

import (
	"context"
	"database/sql"
	"time"

	"leadcourier/internal/models"
)

// MessageRepository defines outbound message data access operations.
// Claim and Release implement the claim-and-update pattern that keeps
// each message id with at most one worker at a time.
type MessageRepository interface {
	Create(ctx context.Context, message *models.OutboundMessage) (created bool, err error)
	GetByID(ctx context.Context, orgID string, id int) (*models.OutboundMessage, error)
	GetByProviderMessageID(ctx context.Context, orgID, providerMessageID string) (*models.OutboundMessage, error)
	GetByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (*models.OutboundMessage, error)
	Claim(ctx context.Context, id int) (*models.OutboundMessage, error)
	Release(ctx context.Context, id int) error
	UpdateOnSuccess(ctx context.Context, id int, attemptCount int, providerMessageID string) error
	UpdateOnFailure(ctx context.Context, id int, status models.MessageStatus, attemptCount int, errorCode, errorMessage string) error
	UpdateStatus(ctx context.Context, id int, status models.MessageStatus, errorCode, errorMessage *string) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]*models.OutboundMessage, error)
	RecoverStale(ctx context.Context, olderThan time.Time) (int, error)
	CountDeadLetters(ctx context.Context) (int, error)
}

// AttemptRepository defines attempt ledger operations. Attempts are
// append-only.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.OutboundAttempt) error
	ListByMessage(ctx context.Context, orgID string, messageID int) ([]*models.OutboundAttempt, error)
}

// SessionWindowRepository defines session window data access operations
type SessionWindowRepository interface {
	Get(ctx context.Context, orgID, phoneNumber string) (*models.SessionWindow, error)
	Upsert(ctx context.Context, window *models.SessionWindow) error
	TouchOutbound(ctx context.Context, orgID, phoneNumber string, at time.Time) error
}

// RateLimitRepository defines quota counter operations. ConsumeQuota
// performs the whole check-and-increment in a single guarded UPDATE so
// concurrent workers for the same org cannot lose updates.
type RateLimitRepository interface {
	Get(ctx context.Context, orgID string) (*models.RateLimit, error)
	EnsureExists(ctx context.Context, orgID string, quotaLimit int, windowResetAt time.Time) error
	ResetWindowIfExpired(ctx context.Context, orgID string, now, nextReset time.Time) error
	ConsumeQuota(ctx context.Context, orgID string, now time.Time) (bool, error)
	SetThrottleUntil(ctx context.Context, orgID string, until time.Time) error
}

// DossierRepository defines the lead data access the engine needs
type DossierRepository interface {
	FindActiveByPhone(ctx context.Context, orgID, phone string) (*models.Dossier, error)
	GetByID(ctx context.Context, orgID string, id int) (*models.Dossier, error)
	Create(ctx context.Context, dossier *models.Dossier) error
	UpdateName(ctx context.Context, id int, name string) error
}

// InboundMessageRepository defines inbound message ledger operations
type InboundMessageRepository interface {
	ExistsByProviderMessageID(ctx context.Context, providerMessageID string) (bool, error)
	Create(ctx context.Context, message *models.InboundMessage) error
}

// ConsentRepository reads the consent registry backing the consent gate
type ConsentRepository interface {
	LatestByDossierAndChannel(ctx context.Context, orgID string, dossierID int, channel models.Channel) (*models.Consent, error)
}

// DB is a wrapper around *sql.DB to allow passing in transaction
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
