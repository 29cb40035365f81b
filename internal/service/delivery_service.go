package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"leadcourier/internal/models"
	"leadcourier/internal/provider"
	"leadcourier/internal/repository"
)

// backoffSchedule is the fixed retry delay sequence, indexed by the
// attempt number of the failure that triggered the retry (1-based).
var backoffSchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
	360 * time.Minute,
}

// BackoffFor returns the delay scheduled after the given failed attempt
// number. Attempt numbers past the end of the schedule reuse the last
// delay.
func BackoffFor(attemptNo int) time.Duration {
	index := attemptNo - 1
	if index < 0 {
		index = 0
	}
	if index >= len(backoffSchedule) {
		index = len(backoffSchedule) - 1
	}
	return backoffSchedule[index]
}

// JobPublisher enqueues a delivery job for the worker pool
type JobPublisher interface {
	PublishDelivery(messageID int, orgID string) error
}

// DeliveryService owns the outbound message lifecycle: creation with
// idempotency and consent gating, and the per-message state machine the
// workers drive through ProcessMessage.
type DeliveryService struct {
	messageRepo  repository.MessageRepository
	attemptRepo  repository.AttemptRepository
	dossierRepo  repository.DossierRepository
	registry     *provider.Registry
	rateLimitSvc *RateLimitService
	sessionSvc   *SessionWindowService
	consentGate  ConsentGate
	audit        AuditSink
	publisher    JobPublisher
	now          func() time.Time
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(
	messageRepo repository.MessageRepository,
	attemptRepo repository.AttemptRepository,
	dossierRepo repository.DossierRepository,
	registry *provider.Registry,
	rateLimitSvc *RateLimitService,
	sessionSvc *SessionWindowService,
	consentGate ConsentGate,
	audit AuditSink,
	publisher JobPublisher,
) *DeliveryService {
	return &DeliveryService{
		messageRepo:  messageRepo,
		attemptRepo:  attemptRepo,
		dossierRepo:  dossierRepo,
		registry:     registry,
		rateLimitSvc: rateLimitSvc,
		sessionSvc:   sessionSvc,
		consentGate:  consentGate,
		audit:        audit,
		publisher:    publisher,
		now:          time.Now,
	}
}

// CreateMessageRequest carries the fields for message creation
type CreateMessageRequest struct {
	OrgID          string          `json:"-"`
	DossierID      *int            `json:"dossier_id,omitempty"`
	Channel        models.Channel  `json:"channel"`
	To             string          `json:"to"`
	TemplateCode   *string         `json:"template_code,omitempty"`
	Body           *string         `json:"body,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	MaxAttempts    int             `json:"max_attempts,omitempty"`
}

// Validate checks the creation request
func (r *CreateMessageRequest) Validate() error {
	if r.OrgID == "" {
		return fmt.Errorf("org id is required")
	}
	if r.To == "" {
		return fmt.Errorf("recipient is required")
	}
	if r.Channel != models.ChannelSMS && r.Channel != models.ChannelWhatsApp {
		return fmt.Errorf("invalid channel: must be 'sms' or 'whatsapp'")
	}
	if r.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative")
	}
	return nil
}

// CreateMessage creates a queued outbound message. A repeated call with
// the same (org, idempotency key) returns the existing message
// unchanged, with no new audit event and no new job; the second return
// value reports whether a new row was created. A failed consent check
// blocks creation, records a BLOCKED_BY_POLICY audit event against the
// dossier, and surfaces why as a PolicyError.
func (s *DeliveryService) CreateMessage(ctx context.Context, req *CreateMessageRequest) (*models.OutboundMessage, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, &ValidationError{Message: err.Error()}
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	} else {
		// The idempotency check runs before any policy gate: a replayed
		// key returns the existing message unchanged even if consent has
		// been revoked since the original create.
		existing, err := s.messageRepo.GetByIdempotencyKey(ctx, req.OrgID, idempotencyKey)
		if err == nil {
			log.Printf("Returning existing message %d for idempotency key %s", existing.ID, idempotencyKey)
			return existing, false, nil
		}
		if err != sql.ErrNoRows {
			return nil, false, err
		}
	}

	if req.DossierID != nil {
		if _, err := s.dossierRepo.GetByID(ctx, req.OrgID, *req.DossierID); err != nil {
			if err == sql.ErrNoRows {
				return nil, false, &NotFoundError{Resource: "dossier", ID: *req.DossierID}
			}
			return nil, false, err
		}

		if err := s.consentGate.Check(ctx, req.OrgID, *req.DossierID, req.Channel); err != nil {
			if policyErr, ok := err.(*PolicyError); ok {
				s.audit.Record(ctx, req.OrgID, "DOSSIER", *req.DossierID, AuditActionBlockedByPolicy, &AuditDiff{
					After: map[string]interface{}{
						"channel": req.Channel,
						"reason":  policyErr.Reason,
					},
				})
			}
			return nil, false, err
		}
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = models.DefaultMaxAttempts
	}

	message := &models.OutboundMessage{
		OrgID:          req.OrgID,
		DossierID:      req.DossierID,
		Channel:        req.Channel,
		To:             req.To,
		TemplateCode:   req.TemplateCode,
		Body:           req.Body,
		Payload:        req.Payload,
		IdempotencyKey: idempotencyKey,
		Status:         models.MessageStatusQueued,
		AttemptCount:   0,
		MaxAttempts:    maxAttempts,
	}

	created, err := s.messageRepo.Create(ctx, message)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create message: %w", err)
	}

	if !created {
		log.Printf("Returning existing message %d for idempotency key %s", message.ID, idempotencyKey)
		return message, false, nil
	}

	s.audit.Record(ctx, message.OrgID, "OUTBOUND_MESSAGE", message.ID, AuditActionCreated, &AuditDiff{
		After: map[string]interface{}{
			"channel":       message.Channel,
			"to":            message.To,
			"template_code": message.TemplateCode,
			"status":        message.Status,
		},
	})

	if s.publisher != nil {
		if err := s.publisher.PublishDelivery(message.ID, message.OrgID); err != nil {
			// The scheduler tick picks up queued messages, so a publish
			// failure delays the send rather than losing it.
			log.Printf("Failed to publish delivery job for message %d: %v", message.ID, err)
		}
	}

	return message, true, nil
}

// GetMessage retrieves a message scoped to its organization
func (s *DeliveryService) GetMessage(ctx context.Context, orgID string, id int) (*models.OutboundMessage, error) {
	message, err := s.messageRepo.GetByID(ctx, orgID, id)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "message", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return message, nil
}

// ListAttempts retrieves the attempt ledger for a message
func (s *DeliveryService) ListAttempts(ctx context.Context, orgID string, messageID int) ([]*models.OutboundAttempt, error) {
	if _, err := s.GetMessage(ctx, orgID, messageID); err != nil {
		return nil, err
	}
	return s.attemptRepo.ListByMessage(ctx, orgID, messageID)
}

// ProcessMessage runs one processing pass for a message id. The claim
// makes it safe to call repeatedly and concurrently: only one worker
// can move the message from queued to sending, so attempts never
// double-number and messages never double-send.
func (s *DeliveryService) ProcessMessage(ctx context.Context, messageID int) error {
	message, err := s.messageRepo.Claim(ctx, messageID)
	if err == sql.ErrNoRows {
		// Already claimed by another worker, or no longer queued.
		return nil
	}
	if err != nil {
		return err
	}

	attemptNo := message.AttemptCount + 1

	ok, err := s.rateLimitSvc.CheckAndConsumeQuota(ctx, message.OrgID)
	if err != nil {
		// Infrastructure failure: put the message back untouched.
		if releaseErr := s.messageRepo.Release(ctx, message.ID); releaseErr != nil {
			log.Printf("Failed to release message %d: %v", message.ID, releaseErr)
		}
		return err
	}
	if !ok {
		// Quota exhaustion is a retryable outcome and counts toward the
		// attempt budget, same as provider errors.
		return s.handleFailure(ctx, message, attemptNo, "QUOTA_EXCEEDED", "quota exceeded or rate limited", true, nil)
	}

	if !message.HasTemplate() {
		withinWindow, err := s.sessionSvc.IsWithinWindow(ctx, message.OrgID, message.To)
		if err != nil {
			if releaseErr := s.messageRepo.Release(ctx, message.ID); releaseErr != nil {
				log.Printf("Failed to release message %d: %v", message.ID, releaseErr)
			}
			return err
		}
		if !withinWindow {
			return s.handleFailure(ctx, message, attemptNo, "SESSION_EXPIRED",
				"cannot send freeform message outside 24-hour session window", false, nil)
		}
	}

	p := s.registry.Resolve(message.Channel)
	if p == nil {
		return s.handleFailure(ctx, message, attemptNo, provider.ErrCodeNoProvider,
			fmt.Sprintf("no provider registered for channel %s", message.Channel), false, nil)
	}

	result := p.Send(ctx, message)

	if result.Success {
		return s.handleSuccess(ctx, message, attemptNo, result)
	}

	if result.RateLimited {
		if err := s.rateLimitSvc.HandleRateLimitError(ctx, message.OrgID, result.RetryAfterSeconds); err != nil {
			log.Printf("Failed to record provider throttle for org %s: %v", message.OrgID, err)
		}
	}

	return s.handleFailure(ctx, message, attemptNo, result.ErrorCode, result.ErrorMessage, result.Retryable, result.ResponseData)
}

func (s *DeliveryService) handleSuccess(ctx context.Context, message *models.OutboundMessage, attemptNo int, result *provider.SendResult) error {
	log.Printf("Message %d sent, provider id %s", message.ID, result.ProviderMessageID)

	if err := s.messageRepo.UpdateOnSuccess(ctx, message.ID, attemptNo, result.ProviderMessageID); err != nil {
		return err
	}

	attempt := &models.OutboundAttempt{
		OrgID:            message.OrgID,
		MessageID:        message.ID,
		AttemptNo:        attemptNo,
		Outcome:          models.AttemptOutcomeSuccess,
		ProviderResponse: result.ResponseData,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return err
	}

	s.audit.Record(ctx, message.OrgID, "OUTBOUND_MESSAGE", message.ID, AuditActionSent, &AuditDiff{
		Changes: map[string]AuditChange{
			"status":              {Before: message.Status, After: models.MessageStatusSent},
			"provider_message_id": {Before: nil, After: result.ProviderMessageID},
		},
	})

	return nil
}

func (s *DeliveryService) handleFailure(ctx context.Context, message *models.OutboundMessage, attemptNo int, errorCode, errorMessage string, retryable bool, responseData json.RawMessage) error {
	canRetry := retryable && attemptNo < message.MaxAttempts

	attempt := &models.OutboundAttempt{
		OrgID:            message.OrgID,
		MessageID:        message.ID,
		AttemptNo:        attemptNo,
		Outcome:          models.AttemptOutcomeFailed,
		ErrorCode:        &errorCode,
		ErrorMessage:     &errorMessage,
		ProviderResponse: responseData,
	}

	if canRetry {
		nextRetryAt := s.now().Add(BackoffFor(attemptNo))
		attempt.NextRetryAt = &nextRetryAt

		if err := s.messageRepo.UpdateOnFailure(ctx, message.ID, models.MessageStatusQueued, attemptNo, errorCode, errorMessage); err != nil {
			return err
		}
		if err := s.attemptRepo.Create(ctx, attempt); err != nil {
			return err
		}

		log.Printf("Message %d re-queued after attempt %d/%d (%s), next retry at %s",
			message.ID, attemptNo, message.MaxAttempts, errorCode, nextRetryAt.Format(time.RFC3339))
		return nil
	}

	if err := s.messageRepo.UpdateOnFailure(ctx, message.ID, models.MessageStatusFailed, attemptNo, errorCode, errorMessage); err != nil {
		return err
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return err
	}

	reason := "non-retryable error"
	if retryable {
		reason = "max attempts reached"
	}
	log.Printf("Message %d moved to failed after attempt %d/%d (%s): %s",
		message.ID, attemptNo, message.MaxAttempts, errorCode, reason)

	s.audit.Record(ctx, message.OrgID, "OUTBOUND_MESSAGE", message.ID, AuditActionFailed, &AuditDiff{
		Changes: map[string]AuditChange{
			"status":          {Before: message.Status, After: models.MessageStatusFailed},
			"last_error_code": {Before: message.LastErrorCode, After: errorCode},
		},
	})

	return nil
}

// EnqueueDue finds queued messages whose retry window has passed and
// republishes them for the worker pool. The scheduler tick calls this;
// nothing blocks waiting for a retry to come due.
func (s *DeliveryService) EnqueueDue(ctx context.Context, batchSize int) (int, error) {
	messages, err := s.messageRepo.FindDue(ctx, s.now(), batchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, message := range messages {
		if err := s.publisher.PublishDelivery(message.ID, message.OrgID); err != nil {
			log.Printf("Failed to enqueue message %d: %v", message.ID, err)
			continue
		}
		enqueued++
	}

	return enqueued, nil
}

// RecoverStale returns messages stuck in sending back to the queue,
// e.g. after a worker crash mid-pass.
func (s *DeliveryService) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	recovered, err := s.messageRepo.RecoverStale(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if recovered > 0 {
		log.Printf("Recovered %d stale messages back to queued", recovered)
	}
	return recovered, nil
}
