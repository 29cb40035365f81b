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

// SessionWindowService tracks the 24-hour messaging-eligibility window
// per (org, phone). Inbound customer messages open or re-open the
// window; outbound sends only move the last-outbound marker.
type SessionWindowService struct {
	windowRepo repository.SessionWindowRepository
	now        func() time.Time
}

// NewSessionWindowService creates a new session window service
func NewSessionWindowService(windowRepo repository.SessionWindowRepository) *SessionWindowService {
	return &SessionWindowService{
		windowRepo: windowRepo,
		now:        time.Now,
	}
}

// IsWithinWindow reports whether a window exists for the (org, phone)
// pair and has not expired.
func (s *SessionWindowService) IsWithinWindow(ctx context.Context, orgID, phoneNumber string) (bool, error) {
	window, err := s.windowRepo.Get(ctx, orgID, phoneNumber)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session window: %w", err)
	}

	return window.IsOpen(s.now()), nil
}

// UpdateWindow is called on every inbound customer message. Each
// inbound message resets eligibility: the window opens at the inbound
// timestamp and expires 24 hours later, whether or not a window was
// already open.
func (s *SessionWindowService) UpdateWindow(ctx context.Context, orgID, phoneNumber string, inboundAt time.Time) error {
	window := &models.SessionWindow{
		OrgID:         orgID,
		PhoneNumber:   phoneNumber,
		LastInboundAt: inboundAt,
		WindowOpensAt: inboundAt,
		WindowExpires: inboundAt.Add(models.SessionWindowDuration),
	}

	if err := s.windowRepo.Upsert(ctx, window); err != nil {
		return err
	}

	log.Printf("Session window updated for org %s, phone %s, expires %s", orgID, phoneNumber, window.WindowExpires.Format(time.RFC3339))
	return nil
}

// RecordOutbound updates the last-outbound marker only. It never
// affects the window expiry.
func (s *SessionWindowService) RecordOutbound(ctx context.Context, orgID, phoneNumber string) error {
	return s.windowRepo.TouchOutbound(ctx, orgID, phoneNumber, s.now())
}
