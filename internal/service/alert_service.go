package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadcourier/internal/repository"
)

// Notifier delivers dead-letter alerts to an operator channel
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// LogNotifier writes alerts to the process log. It is the default sink
// when no external alerting channel is configured.
type LogNotifier struct{}

// Notify logs the alert
func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	log.Printf("ALERT: %s — %s", subject, body)
	return nil
}

// AlertService watches for dead-lettered messages: terminally failed
// messages that exhausted their retry budget. When the count crosses
// the configured threshold an alert is emitted, at most once per
// cooldown period.
type AlertService struct {
	messageRepo repository.MessageRepository
	notifier    Notifier
	threshold   int
	cooldown    time.Duration

	lastAlertAt time.Time
	now         func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(messageRepo repository.MessageRepository, notifier Notifier, threshold int, cooldown time.Duration) *AlertService {
	return &AlertService{
		messageRepo: messageRepo,
		notifier:    notifier,
		threshold:   threshold,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Sweep counts dead-lettered messages and alerts when the count is at
// or above the threshold. Sweep is intended to run on a single worker
// timer; it is not safe for concurrent callers.
func (s *AlertService) Sweep(ctx context.Context) error {
	count, err := s.messageRepo.CountDeadLetters(ctx)
	if err != nil {
		return fmt.Errorf("failed to count dead letters: %w", err)
	}

	if count < s.threshold {
		return nil
	}

	now := s.now()
	if !s.lastAlertAt.IsZero() && now.Sub(s.lastAlertAt) < s.cooldown {
		log.Printf("Dead letter count %d over threshold %d, alert suppressed by cooldown", count, s.threshold)
		return nil
	}

	subject := "Dead-lettered outbound messages over threshold"
	body := fmt.Sprintf("%d outbound messages have exhausted their retries (threshold %d)", count, s.threshold)
	if err := s.notifier.Notify(ctx, subject, body); err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}

	s.lastAlertAt = now
	return nil
}
