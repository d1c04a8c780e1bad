package fetch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"imagestudio/internal/domain"
)

const maxMessageLen = 300

// SubmitError converts a non-2xx submission response into a coded error.
// Credential problems are AuthError; everything else is ProviderRejected.
func SubmitError(provider string, status int, body []byte) error {
	code := domain.CodeProviderRejected
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		code = domain.CodeAuth
	}
	return statusError(provider, code, status, body)
}

// StatusError converts a non-2xx status-check response into a coded error.
// Throttling and server-side failures are TransportError so the poller
// retries them.
func StatusError(provider string, status int, body []byte) error {
	code := domain.CodeProviderRejected
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = domain.CodeAuth
	case status == http.StatusTooManyRequests || status >= 500:
		code = domain.CodeTransport
	}
	return statusError(provider, code, status, body)
}

// TransportError wraps a network-level failure.
func TransportError(provider, action string, err error) error {
	return domain.NewError(domain.CodeTransport, fmt.Sprintf("%s: %s", provider, action), err)
}

func statusError(provider string, code domain.ErrorCode, status int, body []byte) error {
	e := domain.Errorf(code, "%s: status %d: %s", provider, status, ProviderMessage(body))
	e.Raw = map[string]any{"status": status}
	return e
}

// ProviderMessage extracts a human readable message from an error body.
// Both providers use one of detail, message, errors or error; anything else
// falls back to the trimmed body.
func ProviderMessage(body []byte) string {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		for _, key := range []string{"detail", "message", "errors", "error"} {
			if msg := flatten(decoded[key]); msg != "" {
				return truncate(msg)
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	return truncate(msg)
}

func flatten(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		for _, key := range []string{"msg", "message", "detail"} {
			if s := flatten(val[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen-3] + "..."
}
