package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"leadcourier/internal/models"
	"leadcourier/internal/repository"
)

// DefaultThrottleSeconds is applied when the provider signals rate
// limiting without a Retry-After value.
const DefaultThrottleSeconds = 300

// RateLimitService owns the per-org quota counter. Quota consumption is
// a single atomic repository operation so concurrent workers never lose
// an increment.
type RateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	defaultLimit  int
	window        time.Duration
	now           func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, defaultLimit int, window time.Duration) *RateLimitService {
	if defaultLimit <= 0 {
		defaultLimit = models.DefaultQuotaLimit
	}
	if window <= 0 {
		window = models.DefaultQuotaWindow
	}
	return &RateLimitService{
		rateLimitRepo: rateLimitRepo,
		defaultLimit:  defaultLimit,
		window:        window,
		now:           time.Now,
	}
}

// CheckAndConsumeQuota returns true and consumes one quota unit when
// the org may send. It returns false without touching the counter when
// a provider throttle is active or the quota is exhausted. An expired
// window is reset before the check.
func (s *RateLimitService) CheckAndConsumeQuota(ctx context.Context, orgID string) (bool, error) {
	now := s.now()

	if err := s.rateLimitRepo.EnsureExists(ctx, orgID, s.defaultLimit, now.Add(s.window)); err != nil {
		return false, err
	}
	if err := s.rateLimitRepo.ResetWindowIfExpired(ctx, orgID, now, now.Add(s.window)); err != nil {
		return false, err
	}

	ok, err := s.rateLimitRepo.ConsumeQuota(ctx, orgID, now)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Printf("Quota check failed for org %s (exhausted or throttled)", orgID)
	}
	return ok, nil
}

// HandleRateLimitError records a provider-signalled throttle for the
// org, independent of the counter. A non-positive throttleSeconds falls
// back to the 5-minute default.
func (s *RateLimitService) HandleRateLimitError(ctx context.Context, orgID string, throttleSeconds int) error {
	if throttleSeconds <= 0 {
		throttleSeconds = DefaultThrottleSeconds
	}
	until := s.now().Add(time.Duration(throttleSeconds) * time.Second)

	if err := s.rateLimitRepo.EnsureExists(ctx, orgID, s.defaultLimit, s.now().Add(s.window)); err != nil {
		return err
	}
	if err := s.rateLimitRepo.SetThrottleUntil(ctx, orgID, until); err != nil {
		return err
	}

	log.Printf("Provider rate limit for org %s, throttling until %s", orgID, until.Format(time.RFC3339))
	return nil
}

// GetQuotaStatus returns a read-only snapshot for observability. It
// never mutates state, so an org with no counter row yet reports the
// default limit untouched.
func (s *RateLimitService) GetQuotaStatus(ctx context.Context, orgID string) (*models.QuotaStatus, error) {
	limit, err := s.rateLimitRepo.Get(ctx, orgID)
	if err == sql.ErrNoRows {
		return &models.QuotaStatus{
			OrgID:         orgID,
			QuotaLimit:    s.defaultLimit,
			Remaining:     s.defaultLimit,
			WindowResetAt: s.now().Add(s.window),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota status: %w", err)
	}

	remaining := limit.QuotaLimit - limit.MessagesSent
	if remaining < 0 {
		remaining = 0
	}

	return &models.QuotaStatus{
		OrgID:         orgID,
		MessagesSent:  limit.MessagesSent,
		QuotaLimit:    limit.QuotaLimit,
		Remaining:     remaining,
		Throttled:     limit.IsThrottled(s.now()),
		WindowResetAt: limit.WindowResetAt,
	}, nil
}
