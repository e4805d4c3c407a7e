// Package webhooks implements the webhook dispatcher (spec.md §4.14):
// event matching, HMAC-signed delivery with retry, and a GDPR-compliant
// audit log supporting per-domain export and erasure.
package webhooks

import (
	"time"

	"github.com/zircote/subcog/internal/model"
)

// AuthMode selects how a webhook authenticates its requests.
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthBearer AuthMode = "bearer"
	AuthHMAC   AuthMode = "hmac"
	AuthBoth   AuthMode = "both"
)

// Format selects the wire shape of the outbound payload (spec.md §6.5).
type Format string

const (
	FormatJSON    Format = "json"
	FormatSlack   Format = "slack"
	FormatDiscord Format = "discord"
)

// RetryConfig tunes delivery retry behavior (spec.md §4.14).
type RetryConfig struct {
	MaxRetries  int
	BaseDelayMs int
	TimeoutSecs int
}

// DefaultRetryConfig mirrors spec.md §5's 30s default webhook timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelayMs: 500, TimeoutSecs: 30}
}

// Delay returns the exponential backoff delay before attempt (1-based):
// base_delay_ms * 2^(attempt-1), capped at 60s (spec.md §4.14 step 4).
func (r RetryConfig) Delay(attempt int) time.Duration {
	d := time.Duration(r.BaseDelayMs) * time.Millisecond
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	cap := 60 * time.Second
	if d > cap {
		d = cap
	}
	return d
}

// Endpoint is one configured webhook target (spec.md §4.14).
type Endpoint struct {
	Name    string
	URL     string
	Auth    AuthMode
	Secret  string // HMAC secret or bearer token, per Auth
	Events  []string
	Scopes  []string
	Enabled bool
	Retry   RetryConfig
	Format  Format
}

// matchesAll reports whether list is empty or contains "*" — spec.md
// §4.14's "empty list or '*' = match all" rule.
func matchesAll(list []string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == "*" {
			return true
		}
	}
	return false
}

func matches(list []string, value string) bool {
	if matchesAll(list) {
		return true
	}
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// Matches reports whether endpoint should receive event, per its Events
// and Scopes lists and Enabled flag.
func (e Endpoint) Matches(event model.MemoryEvent, scope string) bool {
	if !e.Enabled {
		return false
	}
	if !matches(e.Events, string(event.Type)) {
		return false
	}
	return matches(e.Scopes, scope)
}
