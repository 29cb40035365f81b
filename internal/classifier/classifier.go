// Package classifier maps provider error codes to a retryability and
// rate-limit classification. It is the single source of truth consulted
// by the delivery engine and the diagnostics endpoints, so the table is
// pure data: one entry per known code, no branching on code families.
package classifier

// ErrorInfo is the classification of one provider error code
type ErrorInfo struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RateLimit bool   `json:"rate_limit"`
}

// errorCodeTable holds every provider error code the system recognizes.
// Rate-limit codes are a subset of retryable codes.
var errorCodeTable = map[string]ErrorInfo{
	"0": {Message: "Temporary error", Retryable: true},
	"1": {Message: "Service temporarily unavailable", Retryable: true},
	"2": {Message: "Phone number connected to different business account", Retryable: false},
	"3": {Message: "Business account rate limited", Retryable: true, RateLimit: true},
	"4": {Message: "Temporary error with phone number", Retryable: true},
	"5": {Message: "Permanent error with phone number", Retryable: false},

	"100": {Message: "Invalid parameter", Retryable: false},
	"130": {Message: "Rate limit hit", Retryable: true, RateLimit: true},

	"131000": {Message: "Generic user error", Retryable: false},
	"131005": {Message: "Generic message send error", Retryable: true},
	"131008": {Message: "Required parameter missing", Retryable: false},
	"131009": {Message: "Parameter value invalid", Retryable: false},
	"131016": {Message: "Service temporarily unavailable", Retryable: true},
	"131021": {Message: "Recipient not on WhatsApp", Retryable: false},
	"131026": {Message: "Message undeliverable", Retryable: true},
	"131031": {Message: "Recipient blocked", Retryable: false},
	"131042": {Message: "Phone number format invalid", Retryable: false},
	"131045": {Message: "Message too long", Retryable: false},
	"131047": {Message: "Invalid parameter value", Retryable: false},
	"131051": {Message: "Unsupported message type", Retryable: false},
	"131052": {Message: "Media download error", Retryable: false},
	"131053": {Message: "Media upload error", Retryable: false},

	"132000": {Message: "Generic platform error", Retryable: true},
	"132001": {Message: "Message send failed", Retryable: true},
	"132005": {Message: "Re-engagement message send failed", Retryable: true},
	"132007": {Message: "Message blocked by spam filter", Retryable: false},
	"132012": {Message: "Phone number restricted", Retryable: false},
	"132015": {Message: "Cannot send message after 24 hour window", Retryable: false},
	"132016": {Message: "Out of session window - template required", Retryable: false},
	"132068": {Message: "Business account blocked from sending messages", Retryable: false},
	"132069": {Message: "Business account sending limit reached", Retryable: true, RateLimit: true},

	"133000": {Message: "Invalid phone number", Retryable: false},
	"133004": {Message: "Template not found", Retryable: false},
	"133005": {Message: "Template paused", Retryable: false},
	"133006": {Message: "Template disabled", Retryable: false},
	"133008": {Message: "Template parameter count mismatch", Retryable: false},
	"133009": {Message: "Template missing parameters", Retryable: false},
	"133010": {Message: "Template parameter format invalid", Retryable: false},
	"133015": {Message: "Template not approved", Retryable: false},
	"133016": {Message: "Template rejected", Retryable: false},

	"135000": {Message: "Generic template error", Retryable: false},

	"190": {Message: "Access token expired", Retryable: true},
	"200": {Message: "Permissions error", Retryable: false},
	"368": {Message: "Temporarily blocked for policy violations", Retryable: true},
	"470": {Message: "Message expired", Retryable: false},
	"471": {Message: "User unavailable", Retryable: true},

	"80007": {Message: "Rate limit exceeded", Retryable: true, RateLimit: true},
}

// Classify returns the classification for a provider error code.
// Unknown or empty codes fail open toward retry so transient issues
// the table does not know about are not silently dropped.
func Classify(errorCode string) ErrorInfo {
	if errorCode == "" {
		return ErrorInfo{Message: "Unknown error", Retryable: true}
	}
	if info, ok := errorCodeTable[errorCode]; ok {
		return info
	}
	return ErrorInfo{Message: "Unmapped error code: " + errorCode, Retryable: true}
}

// IsRetryable reports whether the code is worth another attempt
func IsRetryable(errorCode string) bool {
	return Classify(errorCode).Retryable
}

// IsRateLimit reports whether the code is a provider rate-limit signal
func IsRateLimit(errorCode string) bool {
	return Classify(errorCode).RateLimit
}

// Message returns the human-readable description for the code
func Message(errorCode string) string {
	return Classify(errorCode).Message
}
