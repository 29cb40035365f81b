package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leadcourier/internal/classifier"
	"leadcourier/internal/models"
)

// WhatsAppConfig is the per-deployment provider configuration
type WhatsAppConfig struct {
	Enabled       bool
	BaseURL       string
	PhoneNumberID string
	APIKey        string
	Timeout       time.Duration
}

// SessionChecker is the slice of the session window tracker the
// provider needs: it re-checks the window at send time, not enqueue
// time, and forces a template payload outside the window.
type SessionChecker interface {
	IsWithinWindow(ctx context.Context, orgID, phoneNumber string) (bool, error)
	RecordOutbound(ctx context.Context, orgID, phoneNumber string) error
}

// WhatsAppProvider sends messages through a WhatsApp-style Business API
type WhatsAppProvider struct {
	config  WhatsAppConfig
	client  *http.Client
	session SessionChecker
}

// NewWhatsAppProvider creates a new WhatsApp provider
func NewWhatsAppProvider(config WhatsAppConfig, session SessionChecker) *WhatsAppProvider {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhatsAppProvider{
		config:  config,
		client:  &http.Client{Timeout: timeout},
		session: session,
	}
}

// graphErrorBody is the error envelope the API returns on failure
type graphErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
		Details string `json:"error_data,omitempty"`
	} `json:"error"`
}

// sendResponse is the success envelope
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send performs one send call. A disabled provider fails non-retryably
// without any network call. Freeform sends outside the session window
// fail with SESSION_EXPIRED before reaching the network.
func (p *WhatsAppProvider) Send(ctx context.Context, message *models.OutboundMessage) *SendResult {
	if !p.config.Enabled {
		return &SendResult{
			ErrorCode:    ErrCodeProviderDisabled,
			ErrorMessage: "WhatsApp provider is disabled",
			Retryable:    false,
		}
	}

	withinWindow, err := p.session.IsWithinWindow(ctx, message.OrgID, message.To)
	if err != nil {
		return &SendResult{
			ErrorCode:    ErrCodeNetworkError,
			ErrorMessage: fmt.Sprintf("session window check failed: %v", err),
			Retryable:    true,
		}
	}

	if !withinWindow && !message.HasTemplate() {
		return &SendResult{
			ErrorCode:    "SESSION_EXPIRED",
			ErrorMessage: "cannot send freeform message outside 24-hour session window, use a template message instead",
			Retryable:    false,
		}
	}

	payload := p.buildPayload(message)

	body, err := json.Marshal(payload)
	if err != nil {
		return &SendResult{
			ErrorCode:    ErrCodeNetworkError,
			ErrorMessage: fmt.Sprintf("failed to encode payload: %v", err),
			Retryable:    false,
		}
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(p.config.BaseURL, "/"), p.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &SendResult{
			ErrorCode:    ErrCodeNetworkError,
			ErrorMessage: err.Error(),
			Retryable:    false,
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		// Includes client timeouts: retryable, never a hang.
		return &SendResult{
			ErrorCode:    ErrCodeNetworkError,
			ErrorMessage: err.Error(),
			Retryable:    true,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &SendResult{
			ErrorCode:    ErrCodeNetworkError,
			ErrorMessage: err.Error(),
			Retryable:    true,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed sendResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Messages) == 0 {
			return &SendResult{
				ErrorCode:    ErrCodeHTTPError,
				ErrorMessage: "response missing provider message id",
				Retryable:    true,
				ResponseData: respBody,
			}
		}

		if err := p.session.RecordOutbound(ctx, message.OrgID, message.To); err != nil {
			log.Printf("Failed to record outbound marker for org %s: %v", message.OrgID, err)
		}

		return &SendResult{
			Success:           true,
			ProviderMessageID: parsed.Messages[0].ID,
			ResponseData:      respBody,
		}
	}

	return p.classifyHTTPFailure(resp, respBody)
}

func (p *WhatsAppProvider) classifyHTTPFailure(resp *http.Response, respBody []byte) *SendResult {
	var graphErr graphErrorBody
	errorCode := ""
	errorMessage := fmt.Sprintf("HTTP %d", resp.StatusCode)

	if err := json.Unmarshal(respBody, &graphErr); err == nil && graphErr.Error.Code != 0 {
		errorCode = strconv.Itoa(graphErr.Error.Code)
		if graphErr.Error.Message != "" {
			errorMessage = graphErr.Error.Message
		}
	}

	if errorCode == "" {
		return &SendResult{
			ErrorCode:    ErrCodeHTTPError,
			ErrorMessage: errorMessage,
			Retryable:    resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			RateLimited:  resp.StatusCode == http.StatusTooManyRequests,
			ResponseData: respBody,
		}
	}

	info := classifier.Classify(errorCode)
	result := &SendResult{
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
		Retryable:    info.Retryable,
		RateLimited:  info.RateLimit,
		ResponseData: respBody,
	}

	if info.RateLimit {
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			result.RetryAfterSeconds = seconds
		}
	}

	return result
}

// buildPayload assembles the wire payload. Freeform sends outside the
// session window never reach this point; the window check in Send
// already rejected them, so the template path is chosen purely by
// whether the message carries a template.
func (p *WhatsAppProvider) buildPayload(message *models.OutboundMessage) map[string]interface{} {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                normalizePhone(message.To),
	}

	if message.HasTemplate() {
		p.buildTemplatePayload(payload, message)
	} else {
		p.buildFreeformPayload(payload, message)
	}

	return payload
}

func (p *WhatsAppProvider) buildTemplatePayload(payload map[string]interface{}, message *models.OutboundMessage) {
	template := map[string]interface{}{}
	if message.TemplateCode != nil {
		template["name"] = *message.TemplateCode
	}

	language := "en"
	var extras map[string]interface{}
	if len(message.Payload) > 0 {
		if err := json.Unmarshal(message.Payload, &extras); err == nil {
			if lang, ok := extras["language"].(string); ok && lang != "" {
				language = lang
			}
			if components, ok := extras["components"]; ok {
				template["components"] = components
			}
		}
	}
	template["language"] = map[string]string{"code": language}

	payload["type"] = "template"
	payload["template"] = template
}

func (p *WhatsAppProvider) buildFreeformPayload(payload map[string]interface{}, message *models.OutboundMessage) {
	body := ""
	if message.Body != nil {
		body = *message.Body
	}
	if len(message.Payload) > 0 {
		var extras map[string]interface{}
		if err := json.Unmarshal(message.Payload, &extras); err == nil {
			if b, ok := extras["body"].(string); ok && b != "" {
				body = b
			}
		}
	}

	payload["type"] = "text"
	payload["text"] = map[string]string{"body": body}
}

// normalizePhone strips formatting so the API always receives digits
// with an optional leading plus.
func normalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
