package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadcourier/internal/models"
)

type stubSession struct {
	withinWindow  bool
	windowErr     error
	outboundCalls int
}

func (s *stubSession) IsWithinWindow(ctx context.Context, orgID, phoneNumber string) (bool, error) {
	return s.withinWindow, s.windowErr
}

func (s *stubSession) RecordOutbound(ctx context.Context, orgID, phoneNumber string) error {
	s.outboundCalls++
	return nil
}

func strPtr(s string) *string { return &s }

func testMessage() *models.OutboundMessage {
	return &models.OutboundMessage{
		ID:      1,
		OrgID:   "org-1",
		Channel: models.ChannelWhatsApp,
		To:      "+254 700 000-001",
		Body:    strPtr("hello"),
	}
}

func newTestProvider(serverURL string, session SessionChecker) *WhatsAppProvider {
	return NewWhatsAppProvider(WhatsAppConfig{
		Enabled:       true,
		BaseURL:       serverURL,
		PhoneNumberID: "123456",
		APIKey:        "test-key",
		Timeout:       2 * time.Second,
	}, session)
}

func TestSend_DisabledProviderNoNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	p := NewWhatsAppProvider(WhatsAppConfig{Enabled: false, BaseURL: server.URL}, &stubSession{})
	result := p.Send(context.Background(), testMessage())

	if result.Success {
		t.Error("expected failure from a disabled provider")
	}
	if result.ErrorCode != ErrCodeProviderDisabled {
		t.Errorf("expected %s, got %s", ErrCodeProviderDisabled, result.ErrorCode)
	}
	if result.Retryable {
		t.Error("disabled provider failures must not retry")
	}
	if called {
		t.Error("disabled provider must not hit the network")
	}
}

func TestSend_SuccessParsesProviderID(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if r.URL.Path != "/123456/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.abc123"}]}`))
	}))
	defer server.Close()

	session := &stubSession{withinWindow: true}
	p := newTestProvider(server.URL, session)
	result := p.Send(context.Background(), testMessage())

	if !result.Success {
		t.Fatalf("expected success, got %s: %s", result.ErrorCode, result.ErrorMessage)
	}
	if result.ProviderMessageID != "wamid.abc123" {
		t.Errorf("expected wamid.abc123, got %s", result.ProviderMessageID)
	}
	if session.outboundCalls != 1 {
		t.Errorf("expected one outbound marker, got %d", session.outboundCalls)
	}
	if received["to"] != "+254700000001" {
		t.Errorf("expected a normalized phone number, got %v", received["to"])
	}
	if received["type"] != "text" {
		t.Errorf("expected a text payload inside the window, got %v", received["type"])
	}
}

func TestSend_FreeformOutsideWindowBlockedBeforeNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	p := newTestProvider(server.URL, &stubSession{withinWindow: false})
	result := p.Send(context.Background(), testMessage())

	if result.Success || result.Retryable {
		t.Error("expected a terminal failure for freeform outside the window")
	}
	if result.ErrorCode != "SESSION_EXPIRED" {
		t.Errorf("expected SESSION_EXPIRED, got %s", result.ErrorCode)
	}
	if called {
		t.Error("window check must short-circuit before the network")
	}
}

func TestSend_TemplateOutsideWindowUsesTemplatePayload(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"messages":[{"id":"wamid.tpl"}]}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, &stubSession{withinWindow: false})
	message := testMessage()
	message.TemplateCode = strPtr("visit_reminder")
	message.Payload = json.RawMessage(`{"language":"sw"}`)

	result := p.Send(context.Background(), message)

	if !result.Success {
		t.Fatalf("expected success, got %s: %s", result.ErrorCode, result.ErrorMessage)
	}
	if received["type"] != "template" {
		t.Fatalf("expected a template payload outside the window, got %v", received["type"])
	}
	template := received["template"].(map[string]interface{})
	if template["name"] != "visit_reminder" {
		t.Errorf("unexpected template name %v", template["name"])
	}
	language := template["language"].(map[string]interface{})
	if language["code"] != "sw" {
		t.Errorf("expected language from the payload, got %v", language["code"])
	}
}

func TestSend_GraphErrorClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Re-engagement message","code":131026}}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, &stubSession{withinWindow: true})
	result := p.Send(context.Background(), testMessage())

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.ErrorCode != "131026" {
		t.Errorf("expected error code 131026, got %s", result.ErrorCode)
	}
	if !result.Retryable {
		t.Error("131026 should be retryable")
	}
	if result.ErrorMessage != "Re-engagement message" {
		t.Errorf("expected the graph error message, got %q", result.ErrorMessage)
	}
}

func TestSend_RateLimitReadsRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit hit","code":130}}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, &stubSession{withinWindow: true})
	result := p.Send(context.Background(), testMessage())

	if !result.RateLimited {
		t.Error("expected a rate-limited result")
	}
	if result.RetryAfterSeconds != 120 {
		t.Errorf("expected RetryAfterSeconds 120, got %d", result.RetryAfterSeconds)
	}
	if !result.Retryable {
		t.Error("rate limits should be retryable")
	}
}

func TestSend_ServerErrorWithoutEnvelopeRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream exploded`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL, &stubSession{withinWindow: true})
	result := p.Send(context.Background(), testMessage())

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.ErrorCode != ErrCodeHTTPError {
		t.Errorf("expected %s, got %s", ErrCodeHTTPError, result.ErrorCode)
	}
	if !result.Retryable {
		t.Error("5xx without an error envelope should be retryable")
	}
}

func TestSend_TimeoutIsRetryableNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"messages":[{"id":"wamid.late"}]}`))
	}))
	defer server.Close()

	p := NewWhatsAppProvider(WhatsAppConfig{
		Enabled:       true,
		BaseURL:       server.URL,
		PhoneNumberID: "123456",
		APIKey:        "test-key",
		Timeout:       50 * time.Millisecond,
	}, &stubSession{withinWindow: true})

	result := p.Send(context.Background(), testMessage())

	if result.Success {
		t.Fatal("expected a timeout failure")
	}
	if result.ErrorCode != ErrCodeNetworkError {
		t.Errorf("expected %s, got %s", ErrCodeNetworkError, result.ErrorCode)
	}
	if !result.Retryable {
		t.Error("timeouts must be retryable")
	}
}
