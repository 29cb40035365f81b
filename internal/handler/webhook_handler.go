package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"leadcourier/internal/service"

	"github.com/gorilla/mux"
)

// SignatureHeader carries the provider's HMAC signature over the raw body
const SignatureHeader = "X-Hub-Signature-256"

// WebhookHandler handles provider webhook callbacks
type WebhookHandler struct {
	webhookService *service.WebhookService
	secret         string
	verifyToken    string
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookService *service.WebhookService, secret, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		secret:         secret,
		verifyToken:    verifyToken,
	}
}

// Verify handles GET /api/v1/webhooks/whatsapp - the provider's
// subscription challenge. A subscribe request with the right verify
// token gets the challenge echoed back; everything else is forbidden.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && (h.verifyToken == "" || token == h.verifyToken) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	w.WriteHeader(http.StatusForbidden)
}

// Receive handles POST /api/v1/webhooks/whatsapp/{orgID}. The signature
// is checked over the raw body before parsing; a mismatch is the only
// non-200 outcome. Everything after that always returns 200 so the
// provider does not retry callbacks we have chosen to ignore.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	org := mux.Vars(r)["orgID"]

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Failed to read webhook body for org %s: %v", org, err)
		WriteOK(w, map[string]string{"status": "received"})
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if err := h.webhookService.VerifySignature(body, signature, h.secret); err != nil {
		log.Printf("Webhook signature rejected for org %s: %v", org, err)
		HandleServiceError(w, err)
		return
	}

	var payload service.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("Ignoring malformed webhook payload for org %s: %v", org, err)
		WriteOK(w, map[string]string{"status": "received"})
		return
	}

	h.webhookService.ProcessPayload(r.Context(), org, &payload)

	WriteOK(w, map[string]string{"status": "received"})
}
