package handler

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"leadcourier/internal/service"

	"github.com/gorilla/mux"
)

// OrgIDHeader identifies the tenant on API requests
const OrgIDHeader = "X-Org-ID"

// MessageHandler handles HTTP requests for outbound message operations
type MessageHandler struct {
	deliveryService  *service.DeliveryService
	rateLimitService *service.RateLimitService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(deliveryService *service.DeliveryService, rateLimitService *service.RateLimitService) *MessageHandler {
	return &MessageHandler{
		deliveryService:  deliveryService,
		rateLimitService: rateLimitService,
	}
}

// orgID extracts the tenant id from the request header
func orgID(r *http.Request) string {
	return r.Header.Get(OrgIDHeader)
}

// Create handles POST /api/v1/messages - queues a new outbound message
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	org := orgID(r)
	if org == "" {
		WriteValidationError(w, "X-Org-ID header is required")
		return
	}

	var req service.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is empty")
			return
		}
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	req.OrgID = org

	message, created, err := h.deliveryService.CreateMessage(r.Context(), &req)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	// The same idempotency key returns the existing message, not a new one
	if !created {
		WriteOK(w, message)
		return
	}

	WriteCreated(w, message)
}

// Get handles GET /api/v1/messages/{id}
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	org := orgID(r)
	if org == "" {
		WriteValidationError(w, "X-Org-ID header is required")
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		WriteValidationError(w, "invalid message id")
		return
	}

	message, err := h.deliveryService.GetMessage(r.Context(), org, id)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, message)
}

// ListAttempts handles GET /api/v1/messages/{id}/attempts
func (h *MessageHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	org := orgID(r)
	if org == "" {
		WriteValidationError(w, "X-Org-ID header is required")
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		WriteValidationError(w, "invalid message id")
		return
	}

	attempts, err := h.deliveryService.ListAttempts(r.Context(), org, id)
	if err != nil {
		if err == sql.ErrNoRows {
			WriteNotFoundError(w, "message", id)
			return
		}
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, map[string]interface{}{
		"message_id": id,
		"attempts":   attempts,
	})
}

// QuotaStatus handles GET /api/v1/tenants/{orgID}/quota
func (h *MessageHandler) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	org := mux.Vars(r)["orgID"]
	if org == "" {
		WriteValidationError(w, "org id is required")
		return
	}

	status, err := h.rateLimitService.GetQuotaStatus(r.Context(), org)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, status)
}
