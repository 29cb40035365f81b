package service

import (
	"context"
	"testing"
	"time"

	"leadcourier/internal/models"
)

func TestCheckAndConsumeQuota_ConsumesOnce(t *testing.T) {
	repo := NewMockRateLimitRepository()
	svc := NewRateLimitService(repo, 1000, 24*time.Hour)

	ok, err := svc.CheckAndConsumeQuota(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected quota to be granted")
	}
	if repo.Calls["EnsureExists"] != 1 || repo.Calls["ResetWindowIfExpired"] != 1 || repo.Calls["ConsumeQuota"] != 1 {
		t.Errorf("expected ensure/reset/consume each once, got %v", repo.Calls)
	}
}

func TestCheckAndConsumeQuota_Denied(t *testing.T) {
	repo := NewMockRateLimitRepository()
	repo.ConsumeQuotaFunc = func(ctx context.Context, orgID string, now time.Time) (bool, error) {
		return false, nil
	}
	svc := NewRateLimitService(repo, 1000, 24*time.Hour)

	ok, err := svc.CheckAndConsumeQuota(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected quota to be denied")
	}
}

func TestHandleRateLimitError_DefaultThrottle(t *testing.T) {
	repo := NewMockRateLimitRepository()
	svc := NewRateLimitService(repo, 1000, 24*time.Hour)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	// No Retry-After from the provider: fall back to 5 minutes
	if err := svc.HandleRateLimitError(context.Background(), "org-1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := fixed.Add(DefaultThrottleSeconds * time.Second)
	if !repo.ThrottleUntil.Equal(want) {
		t.Errorf("expected default throttle until %s, got %s", want, repo.ThrottleUntil)
	}
}

func TestGetQuotaStatus_NoRowReportsDefaults(t *testing.T) {
	repo := NewMockRateLimitRepository()
	svc := NewRateLimitService(repo, 1000, 24*time.Hour)

	status, err := svc.GetQuotaStatus(context.Background(), "org-new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.QuotaLimit != 1000 || status.Remaining != 1000 || status.MessagesSent != 0 {
		t.Errorf("expected untouched defaults, got %+v", status)
	}
	// Read path must not create the counter row
	if repo.Calls["EnsureExists"] != 0 {
		t.Error("quota status must not mutate state")
	}
}

func TestGetQuotaStatus_ReportsRemaining(t *testing.T) {
	repo := NewMockRateLimitRepository()
	now := time.Now()
	repo.GetFunc = func(ctx context.Context, orgID string) (*models.RateLimit, error) {
		throttle := now.Add(time.Minute)
		return &models.RateLimit{
			OrgID:         orgID,
			QuotaLimit:    100,
			MessagesSent:  40,
			WindowResetAt: now.Add(time.Hour),
			ThrottleUntil: &throttle,
		}, nil
	}
	svc := NewRateLimitService(repo, 1000, 24*time.Hour)

	status, err := svc.GetQuotaStatus(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Remaining != 60 {
		t.Errorf("expected 60 remaining, got %d", status.Remaining)
	}
	if !status.Throttled {
		t.Error("expected throttled status")
	}
}
