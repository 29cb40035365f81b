package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"leadcourier/internal/models"
	"leadcourier/internal/repository"
)

// WebhookPayload is the inbound envelope the provider posts:
// entry[].changes[].value carries either delivery statuses or
// customer-initiated messages.
type WebhookPayload struct {
	Entry []WebhookEntry `json:"entry"`
}

// WebhookEntry is one entry in the webhook envelope
type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange is one change notification inside an entry
type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

// WebhookValue carries the actual payload of a change
type WebhookValue struct {
	Metadata *WebhookMetadata `json:"metadata,omitempty"`
	Statuses []WebhookStatus  `json:"statuses,omitempty"`
	Messages []WebhookMessage `json:"messages,omitempty"`
	Contacts []WebhookContact `json:"contacts,omitempty"`
}

// WebhookMetadata identifies the receiving phone number
type WebhookMetadata struct {
	PhoneNumberID string `json:"phone_number_id"`
}

// WebhookStatus is one delivery-status callback
type WebhookStatus struct {
	ID        string               `json:"id"`
	Status    string               `json:"status"`
	Timestamp string               `json:"timestamp"`
	Errors    []WebhookStatusError `json:"errors,omitempty"`
}

// WebhookStatusError is the error detail on a failed status
type WebhookStatusError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// WebhookMessage is one customer-initiated message
type WebhookMessage struct {
	From      string       `json:"from"`
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *WebhookText `json:"text,omitempty"`
}

// WebhookText is the body of a text message
type WebhookText struct {
	Body string `json:"body"`
}

// WebhookContact carries the sender profile parallel to messages
type WebhookContact struct {
	Profile *WebhookProfile `json:"profile,omitempty"`
}

// WebhookProfile is the sender's display profile
type WebhookProfile struct {
	Name string `json:"name"`
}

// WebhookService verifies and ingests provider callbacks: delivery
// statuses advance the outbound state machine, inbound customer
// messages refresh the session window.
type WebhookService struct {
	messageRepo repository.MessageRepository
	inboundRepo repository.InboundMessageRepository
	dossierRepo repository.DossierRepository
	sessionSvc  *SessionWindowService
	audit       AuditSink
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	messageRepo repository.MessageRepository,
	inboundRepo repository.InboundMessageRepository,
	dossierRepo repository.DossierRepository,
	sessionSvc *SessionWindowService,
	audit AuditSink,
) *WebhookService {
	return &WebhookService{
		messageRepo: messageRepo,
		inboundRepo: inboundRepo,
		dossierRepo: dossierRepo,
		sessionSvc:  sessionSvc,
		audit:       audit,
	}
}

// VerifySignature checks an HMAC-SHA256 hex signature (with or without
// the "sha256=" prefix) over the raw request body. An empty signature
// is accepted unverified — a deliberate, known leniency of the webhook
// boundary; see DESIGN.md. A present but mismatched signature is an
// authentication error and nothing is processed.
func (s *WebhookService) VerifySignature(rawBody []byte, providedSignature, secret string) error {
	if providedSignature == "" {
		return nil
	}
	if secret == "" {
		return &AuthenticationError{Message: "signature provided but no webhook secret configured"}
	}

	provided := strings.TrimPrefix(providedSignature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return &AuthenticationError{Message: "webhook signature mismatch"}
	}

	return nil
}

// ProcessPayload walks the envelope and dispatches statuses and inbound
// messages. Malformed or unrecognized content produces no state change
// and no error; the provider always receives a 200.
func (s *WebhookService) ProcessPayload(ctx context.Context, orgID string, payload *WebhookPayload) {
	if payload == nil || len(payload.Entry) == 0 {
		log.Printf("Webhook payload with no entries for org %s", orgID)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			contactName := extractContactName(change.Value.Contacts)
			for _, message := range change.Value.Messages {
				if err := s.HandleInboundMessage(ctx, orgID, message, contactName); err != nil {
					log.Printf("Failed to handle inbound message %s: %v", message.ID, err)
				}
			}

			for _, status := range change.Value.Statuses {
				if err := s.HandleDeliveryStatus(ctx, orgID, &status); err != nil {
					log.Printf("Failed to handle delivery status for %s: %v", status.ID, err)
				}
			}
		}
	}
}

// HandleDeliveryStatus advances the outbound state machine from one
// delivery callback. Lookups are tenant scoped: a mismatched org
// behaves exactly like an unknown provider message id, a silent no-op.
// Terminal states are never overwritten; a callback that would regress
// state is ignored.
func (s *WebhookService) HandleDeliveryStatus(ctx context.Context, orgID string, status *WebhookStatus) error {
	newStatus, ok := mapDeliveryStatus(status.Status)
	if !ok {
		log.Printf("Ignoring unmapped delivery status %q for %s", status.Status, status.ID)
		return nil
	}

	message, err := s.messageRepo.GetByProviderMessageID(ctx, orgID, status.ID)
	if err == sql.ErrNoRows {
		log.Printf("Outbound message not found for provider id %s (org %s)", status.ID, orgID)
		return nil
	}
	if err != nil {
		return err
	}

	if !shouldAdvanceStatus(message.Status, newStatus) {
		log.Printf("Ignoring %s callback for message %d in status %s", status.Status, message.ID, message.Status)
		return nil
	}

	var errorCode, errorMessage *string
	if newStatus == models.MessageStatusFailed && len(status.Errors) > 0 {
		code := strconv.Itoa(status.Errors[0].Code)
		msg := status.Errors[0].Message
		if msg == "" {
			msg = status.Errors[0].Title
		}
		errorCode = &code
		errorMessage = &msg
	}

	if err := s.messageRepo.UpdateStatus(ctx, message.ID, newStatus, errorCode, errorMessage); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}

	log.Printf("Updated message %d status %s -> %s from webhook", message.ID, message.Status, newStatus)

	s.audit.Record(ctx, orgID, "OUTBOUND_MESSAGE", message.ID, AuditActionUpdated, &AuditDiff{
		Changes: map[string]AuditChange{
			"status": {Before: message.Status, After: newStatus},
		},
	})

	return nil
}

// HandleInboundMessage records a customer-initiated message: dedupes on
// the provider message id, finds or creates the dossier by phone,
// stores the message, and refreshes the session window.
func (s *WebhookService) HandleInboundMessage(ctx context.Context, orgID string, message WebhookMessage, contactName string) error {
	exists, err := s.inboundRepo.ExistsByProviderMessageID(ctx, message.ID)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("Inbound message %s already processed, skipping", message.ID)
		return nil
	}

	receivedAt := parseEpochTimestamp(message.Timestamp)
	body := extractMessageBody(message)

	dossier, err := s.findOrCreateDossier(ctx, orgID, message.From, contactName)
	if err != nil {
		return err
	}

	inbound := &models.InboundMessage{
		OrgID:             orgID,
		DossierID:         dossier.ID,
		ProviderMessageID: message.ID,
		FromPhone:         message.From,
		Body:              body,
		ReceivedAt:        receivedAt,
	}
	if err := s.inboundRepo.Create(ctx, inbound); err != nil {
		return err
	}

	if err := s.sessionSvc.UpdateWindow(ctx, orgID, message.From, receivedAt); err != nil {
		return err
	}

	log.Printf("Processed inbound message %s for dossier %d (org %s)", message.ID, dossier.ID, orgID)
	return nil
}

func (s *WebhookService) findOrCreateDossier(ctx context.Context, orgID, phone, contactName string) (*models.Dossier, error) {
	dossier, err := s.dossierRepo.FindActiveByPhone(ctx, orgID, phone)
	if err == nil {
		if contactName != "" && (dossier.LeadName == nil || *dossier.LeadName == "") {
			if err := s.dossierRepo.UpdateName(ctx, dossier.ID, contactName); err != nil {
				log.Printf("Failed to backfill lead name for dossier %d: %v", dossier.ID, err)
			}
		}
		return dossier, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	dossier = &models.Dossier{
		OrgID:      orgID,
		LeadPhone:  phone,
		LeadSource: "WhatsApp",
		Status:     models.DossierStatusNew,
	}
	if contactName != "" {
		dossier.LeadName = &contactName
	}
	if err := s.dossierRepo.Create(ctx, dossier); err != nil {
		return nil, err
	}

	return dossier, nil
}

// mapDeliveryStatus maps provider callback statuses to message states.
// A read receipt implies delivery and collapses onto delivered.
func mapDeliveryStatus(status string) (models.MessageStatus, bool) {
	switch strings.ToLower(status) {
	case "sent":
		return models.MessageStatusSent, true
	case "delivered", "read":
		return models.MessageStatusDelivered, true
	case "failed":
		return models.MessageStatusFailed, true
	default:
		return "", false
	}
}

// shouldAdvanceStatus enforces the monotonic update rule: terminal
// states stay put, and repeated sent callbacks are no-ops.
func shouldAdvanceStatus(current, next models.MessageStatus) bool {
	if current == models.MessageStatusFailed || current == models.MessageStatusDelivered {
		return false
	}
	if current == models.MessageStatusSent && next == models.MessageStatusSent {
		return false
	}
	return true
}

func extractMessageBody(message WebhookMessage) string {
	if message.Type == "text" && message.Text != nil {
		return message.Text.Body
	}
	return fmt.Sprintf("[%s message]", message.Type)
}

func extractContactName(contacts []WebhookContact) string {
	if len(contacts) > 0 && contacts[0].Profile != nil {
		return contacts[0].Profile.Name
	}
	return ""
}

// parseEpochTimestamp parses the provider's epoch-seconds timestamp,
// falling back to the current time when it is absent or malformed.
func parseEpochTimestamp(timestamp string) time.Time {
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		log.Printf("Failed to parse webhook timestamp %q, using current time", timestamp)
		return time.Now()
	}
	return time.Unix(seconds, 0)
}
