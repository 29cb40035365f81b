package service

import (
	"context"
	"database/sql"
	"time"

	"leadcourier/internal/models"
	"leadcourier/internal/provider"
)

// MockMessageRepository mocks repository.MessageRepository
type MockMessageRepository struct {
	CreateFunc                 func(ctx context.Context, message *models.OutboundMessage) (bool, error)
	GetByIDFunc                func(ctx context.Context, orgID string, id int) (*models.OutboundMessage, error)
	GetByProviderMessageIDFunc func(ctx context.Context, orgID, providerMessageID string) (*models.OutboundMessage, error)
	GetByIdempotencyKeyFunc    func(ctx context.Context, orgID, idempotencyKey string) (*models.OutboundMessage, error)
	ClaimFunc                  func(ctx context.Context, id int) (*models.OutboundMessage, error)
	ReleaseFunc                func(ctx context.Context, id int) error
	UpdateOnSuccessFunc        func(ctx context.Context, id int, attemptCount int, providerMessageID string) error
	UpdateOnFailureFunc        func(ctx context.Context, id int, status models.MessageStatus, attemptCount int, errorCode, errorMessage string) error
	UpdateStatusFunc           func(ctx context.Context, id int, status models.MessageStatus, errorCode, errorMessage *string) error
	FindDueFunc                func(ctx context.Context, now time.Time, limit int) ([]*models.OutboundMessage, error)
	RecoverStaleFunc           func(ctx context.Context, olderThan time.Time) (int, error)
	CountDeadLettersFunc       func(ctx context.Context) (int, error)

	Calls map[string]int
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{Calls: make(map[string]int)}
}

func (m *MockMessageRepository) Create(ctx context.Context, message *models.OutboundMessage) (bool, error) {
	m.Calls["Create"]++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, message)
	}
	message.ID = 1
	message.CreatedAt = time.Now()
	return true, nil
}

func (m *MockMessageRepository) GetByID(ctx context.Context, orgID string, id int) (*models.OutboundMessage, error) {
	m.Calls["GetByID"]++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, orgID, id)
	}
	return nil, sql.ErrNoRows
}

func (m *MockMessageRepository) GetByProviderMessageID(ctx context.Context, orgID, providerMessageID string) (*models.OutboundMessage, error) {
	m.Calls["GetByProviderMessageID"]++
	if m.GetByProviderMessageIDFunc != nil {
		return m.GetByProviderMessageIDFunc(ctx, orgID, providerMessageID)
	}
	return nil, sql.ErrNoRows
}

func (m *MockMessageRepository) GetByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (*models.OutboundMessage, error) {
	m.Calls["GetByIdempotencyKey"]++
	if m.GetByIdempotencyKeyFunc != nil {
		return m.GetByIdempotencyKeyFunc(ctx, orgID, idempotencyKey)
	}
	return nil, sql.ErrNoRows
}

func (m *MockMessageRepository) Claim(ctx context.Context, id int) (*models.OutboundMessage, error) {
	m.Calls["Claim"]++
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *MockMessageRepository) Release(ctx context.Context, id int) error {
	m.Calls["Release"]++
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, id)
	}
	return nil
}

func (m *MockMessageRepository) UpdateOnSuccess(ctx context.Context, id int, attemptCount int, providerMessageID string) error {
	m.Calls["UpdateOnSuccess"]++
	if m.UpdateOnSuccessFunc != nil {
		return m.UpdateOnSuccessFunc(ctx, id, attemptCount, providerMessageID)
	}
	return nil
}

func (m *MockMessageRepository) UpdateOnFailure(ctx context.Context, id int, status models.MessageStatus, attemptCount int, errorCode, errorMessage string) error {
	m.Calls["UpdateOnFailure"]++
	if m.UpdateOnFailureFunc != nil {
		return m.UpdateOnFailureFunc(ctx, id, status, attemptCount, errorCode, errorMessage)
	}
	return nil
}

func (m *MockMessageRepository) UpdateStatus(ctx context.Context, id int, status models.MessageStatus, errorCode, errorMessage *string) error {
	m.Calls["UpdateStatus"]++
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, errorCode, errorMessage)
	}
	return nil
}

func (m *MockMessageRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*models.OutboundMessage, error) {
	m.Calls["FindDue"]++
	if m.FindDueFunc != nil {
		return m.FindDueFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *MockMessageRepository) RecoverStale(ctx context.Context, olderThan time.Time) (int, error) {
	m.Calls["RecoverStale"]++
	if m.RecoverStaleFunc != nil {
		return m.RecoverStaleFunc(ctx, olderThan)
	}
	return 0, nil
}

func (m *MockMessageRepository) CountDeadLetters(ctx context.Context) (int, error) {
	m.Calls["CountDeadLetters"]++
	if m.CountDeadLettersFunc != nil {
		return m.CountDeadLettersFunc(ctx)
	}
	return 0, nil
}

// MockAttemptRepository mocks repository.AttemptRepository
type MockAttemptRepository struct {
	CreateFunc        func(ctx context.Context, attempt *models.OutboundAttempt) error
	ListByMessageFunc func(ctx context.Context, orgID string, messageID int) ([]*models.OutboundAttempt, error)

	Created []*models.OutboundAttempt
	Calls   map[string]int
}

func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{Calls: make(map[string]int)}
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *models.OutboundAttempt) error {
	m.Calls["Create"]++
	m.Created = append(m.Created, attempt)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, attempt)
	}
	attempt.ID = len(m.Created)
	return nil
}

func (m *MockAttemptRepository) ListByMessage(ctx context.Context, orgID string, messageID int) ([]*models.OutboundAttempt, error) {
	m.Calls["ListByMessage"]++
	if m.ListByMessageFunc != nil {
		return m.ListByMessageFunc(ctx, orgID, messageID)
	}
	return m.Created, nil
}

// MockDossierRepository mocks repository.DossierRepository
type MockDossierRepository struct {
	FindActiveByPhoneFunc func(ctx context.Context, orgID, phone string) (*models.Dossier, error)
	GetByIDFunc           func(ctx context.Context, orgID string, id int) (*models.Dossier, error)
	CreateFunc            func(ctx context.Context, dossier *models.Dossier) error
	UpdateNameFunc        func(ctx context.Context, id int, name string) error

	Calls map[string]int
}

func NewMockDossierRepository() *MockDossierRepository {
	return &MockDossierRepository{Calls: make(map[string]int)}
}

func (m *MockDossierRepository) FindActiveByPhone(ctx context.Context, orgID, phone string) (*models.Dossier, error) {
	m.Calls["FindActiveByPhone"]++
	if m.FindActiveByPhoneFunc != nil {
		return m.FindActiveByPhoneFunc(ctx, orgID, phone)
	}
	return nil, sql.ErrNoRows
}

func (m *MockDossierRepository) GetByID(ctx context.Context, orgID string, id int) (*models.Dossier, error) {
	m.Calls["GetByID"]++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, orgID, id)
	}
	return &models.Dossier{ID: id, OrgID: orgID, LeadPhone: "+254700000001", Status: models.DossierStatusNew}, nil
}

func (m *MockDossierRepository) Create(ctx context.Context, dossier *models.Dossier) error {
	m.Calls["Create"]++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, dossier)
	}
	dossier.ID = 1
	return nil
}

func (m *MockDossierRepository) UpdateName(ctx context.Context, id int, name string) error {
	m.Calls["UpdateName"]++
	if m.UpdateNameFunc != nil {
		return m.UpdateNameFunc(ctx, id, name)
	}
	return nil
}

// MockSessionWindowRepository mocks repository.SessionWindowRepository
type MockSessionWindowRepository struct {
	GetFunc           func(ctx context.Context, orgID, phoneNumber string) (*models.SessionWindow, error)
	UpsertFunc        func(ctx context.Context, window *models.SessionWindow) error
	TouchOutboundFunc func(ctx context.Context, orgID, phoneNumber string, at time.Time) error

	Calls map[string]int
}

func NewMockSessionWindowRepository() *MockSessionWindowRepository {
	return &MockSessionWindowRepository{Calls: make(map[string]int)}
}

func (m *MockSessionWindowRepository) Get(ctx context.Context, orgID, phoneNumber string) (*models.SessionWindow, error) {
	m.Calls["Get"]++
	if m.GetFunc != nil {
		return m.GetFunc(ctx, orgID, phoneNumber)
	}
	return nil, sql.ErrNoRows
}

func (m *MockSessionWindowRepository) Upsert(ctx context.Context, window *models.SessionWindow) error {
	m.Calls["Upsert"]++
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, window)
	}
	return nil
}

func (m *MockSessionWindowRepository) TouchOutbound(ctx context.Context, orgID, phoneNumber string, at time.Time) error {
	m.Calls["TouchOutbound"]++
	if m.TouchOutboundFunc != nil {
		return m.TouchOutboundFunc(ctx, orgID, phoneNumber, at)
	}
	return nil
}

// MockRateLimitRepository mocks repository.RateLimitRepository
type MockRateLimitRepository struct {
	GetFunc                  func(ctx context.Context, orgID string) (*models.RateLimit, error)
	EnsureExistsFunc         func(ctx context.Context, orgID string, quotaLimit int, windowResetAt time.Time) error
	ResetWindowIfExpiredFunc func(ctx context.Context, orgID string, now, nextReset time.Time) error
	ConsumeQuotaFunc         func(ctx context.Context, orgID string, now time.Time) (bool, error)
	SetThrottleUntilFunc     func(ctx context.Context, orgID string, until time.Time) error

	ThrottleUntil time.Time
	Calls         map[string]int
}

func NewMockRateLimitRepository() *MockRateLimitRepository {
	return &MockRateLimitRepository{Calls: make(map[string]int)}
}

func (m *MockRateLimitRepository) Get(ctx context.Context, orgID string) (*models.RateLimit, error) {
	m.Calls["Get"]++
	if m.GetFunc != nil {
		return m.GetFunc(ctx, orgID)
	}
	return nil, sql.ErrNoRows
}

func (m *MockRateLimitRepository) EnsureExists(ctx context.Context, orgID string, quotaLimit int, windowResetAt time.Time) error {
	m.Calls["EnsureExists"]++
	if m.EnsureExistsFunc != nil {
		return m.EnsureExistsFunc(ctx, orgID, quotaLimit, windowResetAt)
	}
	return nil
}

func (m *MockRateLimitRepository) ResetWindowIfExpired(ctx context.Context, orgID string, now, nextReset time.Time) error {
	m.Calls["ResetWindowIfExpired"]++
	if m.ResetWindowIfExpiredFunc != nil {
		return m.ResetWindowIfExpiredFunc(ctx, orgID, now, nextReset)
	}
	return nil
}

func (m *MockRateLimitRepository) ConsumeQuota(ctx context.Context, orgID string, now time.Time) (bool, error) {
	m.Calls["ConsumeQuota"]++
	if m.ConsumeQuotaFunc != nil {
		return m.ConsumeQuotaFunc(ctx, orgID, now)
	}
	return true, nil
}

func (m *MockRateLimitRepository) SetThrottleUntil(ctx context.Context, orgID string, until time.Time) error {
	m.Calls["SetThrottleUntil"]++
	m.ThrottleUntil = until
	if m.SetThrottleUntilFunc != nil {
		return m.SetThrottleUntilFunc(ctx, orgID, until)
	}
	return nil
}

// MockInboundMessageRepository mocks repository.InboundMessageRepository
type MockInboundMessageRepository struct {
	ExistsByProviderMessageIDFunc func(ctx context.Context, providerMessageID string) (bool, error)
	CreateFunc                    func(ctx context.Context, message *models.InboundMessage) error

	Created []*models.InboundMessage
	Calls   map[string]int
}

func NewMockInboundMessageRepository() *MockInboundMessageRepository {
	return &MockInboundMessageRepository{Calls: make(map[string]int)}
}

func (m *MockInboundMessageRepository) ExistsByProviderMessageID(ctx context.Context, providerMessageID string) (bool, error) {
	m.Calls["ExistsByProviderMessageID"]++
	if m.ExistsByProviderMessageIDFunc != nil {
		return m.ExistsByProviderMessageIDFunc(ctx, providerMessageID)
	}
	return false, nil
}

func (m *MockInboundMessageRepository) Create(ctx context.Context, message *models.InboundMessage) error {
	m.Calls["Create"]++
	m.Created = append(m.Created, message)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, message)
	}
	message.ID = len(m.Created)
	return nil
}

// MockConsentRepository mocks repository.ConsentRepository
type MockConsentRepository struct {
	LatestByDossierAndChannelFunc func(ctx context.Context, orgID string, dossierID int, channel models.Channel) (*models.Consent, error)

	Calls map[string]int
}

func NewMockConsentRepository() *MockConsentRepository {
	return &MockConsentRepository{Calls: make(map[string]int)}
}

func (m *MockConsentRepository) LatestByDossierAndChannel(ctx context.Context, orgID string, dossierID int, channel models.Channel) (*models.Consent, error) {
	m.Calls["LatestByDossierAndChannel"]++
	if m.LatestByDossierAndChannelFunc != nil {
		return m.LatestByDossierAndChannelFunc(ctx, orgID, dossierID, channel)
	}
	return &models.Consent{Status: models.ConsentStatusGranted}, nil
}

// MockProvider mocks provider.Provider
type MockProvider struct {
	SendFunc func(ctx context.Context, message *models.OutboundMessage) *provider.SendResult

	Calls map[string]int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{Calls: make(map[string]int)}
}

func (m *MockProvider) Send(ctx context.Context, message *models.OutboundMessage) *provider.SendResult {
	m.Calls["Send"]++
	if m.SendFunc != nil {
		return m.SendFunc(ctx, message)
	}
	return &provider.SendResult{Success: true, ProviderMessageID: "wamid.test"}
}

// MockPublisher mocks the JobPublisher interface
type MockPublisher struct {
	PublishDeliveryFunc func(messageID int, orgID string) error

	Published []int
	Calls     map[string]int
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Calls: make(map[string]int)}
}

func (m *MockPublisher) PublishDelivery(messageID int, orgID string) error {
	m.Calls["PublishDelivery"]++
	m.Published = append(m.Published, messageID)
	if m.PublishDeliveryFunc != nil {
		return m.PublishDeliveryFunc(messageID, orgID)
	}
	return nil
}

// MockNotifier mocks the Notifier interface
type MockNotifier struct {
	NotifyFunc func(ctx context.Context, subject, body string) error

	Notifications []string
	Calls         map[string]int
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Calls: make(map[string]int)}
}

func (m *MockNotifier) Notify(ctx context.Context, subject, body string) error {
	m.Calls["Notify"]++
	m.Notifications = append(m.Notifications, subject)
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, subject, body)
	}
	return nil
}

// MockAuditSink records audit events for assertions
type MockAuditSink struct {
	Events []string
	Diffs  []*AuditDiff
}

func (m *MockAuditSink) Record(ctx context.Context, orgID, entityType string, entityID int, action string, diff *AuditDiff) {
	m.Events = append(m.Events, action)
	m.Diffs = append(m.Diffs, diff)
}
