// Package provider holds the outbound channel adapters. Each adapter
// sends exactly one message and reports a structured result; the
// delivery engine owns retries and state.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"leadcourier/internal/models"
)

// Error codes produced by the adapters themselves, outside the
// provider's own error table.
const (
	ErrCodeProviderDisabled = "PROVIDER_DISABLED"
	ErrCodeNetworkError     = "NETWORK_ERROR"
	ErrCodeHTTPError        = "HTTP_ERROR"
	ErrCodeNoProvider       = "NO_PROVIDER"
)

// SendResult is the structured outcome of one send call
type SendResult struct {
	Success           bool
	ProviderMessageID string
	ErrorCode         string
	ErrorMessage      string
	Retryable         bool
	RateLimited       bool
	RetryAfterSeconds int
	ResponseData      json.RawMessage
}

// Provider sends one message through a channel. Implementations must
// bound their network calls with a timeout and must never block
// indefinitely; a timed-out send is a retryable failure.
type Provider interface {
	Send(ctx context.Context, message *models.OutboundMessage) *SendResult
}

// Registry maps channel identifiers to exactly one provider each,
// resolved once at startup.
type Registry struct {
	providers map[models.Channel]Provider
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[models.Channel]Provider)}
}

// Register binds a channel to a provider. Registering the same channel
// twice is a configuration mistake and returns an error.
func (r *Registry) Register(channel models.Channel, p Provider) error {
	if p == nil {
		return fmt.Errorf("provider for channel %q cannot be nil", channel)
	}
	if _, exists := r.providers[channel]; exists {
		return fmt.Errorf("provider already registered for channel %q", channel)
	}
	r.providers[channel] = p
	return nil
}

// Resolve returns the provider for a channel, or nil when none is bound
func (r *Registry) Resolve(channel models.Channel) Provider {
	return r.providers[channel]
}
