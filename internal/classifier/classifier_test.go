package classifier

import "testing"

func TestClassify_KnownCodes(t *testing.T) {
	cases := []struct {
		code      string
		retryable bool
		rateLimit bool
	}{
		{"0", true, false},       // temporary error
		{"130", true, true},      // rate limit hit
		{"131016", true, false},  // service unavailable
		{"131021", false, false}, // recipient not on WhatsApp
		{"131026", true, false},  // undeliverable
		{"131051", false, false}, // unsupported message type
		{"132015", false, false}, // outside 24h window
		{"132069", true, true},   // sending limit reached
		{"133004", false, false}, // template not found
	}

	for _, c := range cases {
		info := Classify(c.code)
		if info.Retryable != c.retryable {
			t.Errorf("Classify(%s).Retryable = %v, want %v", c.code, info.Retryable, c.retryable)
		}
		if info.RateLimit != c.rateLimit {
			t.Errorf("Classify(%s).RateLimit = %v, want %v", c.code, info.RateLimit, c.rateLimit)
		}
	}
}

func TestClassify_UnknownCodeFailsOpen(t *testing.T) {
	info := Classify("999999")
	if !info.Retryable {
		t.Error("unknown codes must classify as retryable")
	}
	if info.RateLimit {
		t.Error("unknown codes must not classify as rate limits")
	}
}

func TestClassify_EmptyCode(t *testing.T) {
	if !IsRetryable("") {
		t.Error("an empty code must classify as retryable")
	}
}

func TestRateLimitCodesAreRetryable(t *testing.T) {
	// Every rate-limit entry must also be retryable: a throttled send
	// is deferred, never dead-lettered outright.
	for code, info := range errorCodeTable {
		if info.RateLimit && !info.Retryable {
			t.Errorf("code %s is rate-limit but not retryable", code)
		}
	}
}

func TestMessage(t *testing.T) {
	if got := Message("131021"); got != "Recipient not on WhatsApp" {
		t.Errorf("unexpected message for 131021: %q", got)
	}
	if got := Message("999999"); got == "" {
		t.Error("unknown codes must still produce a message")
	}
}
