package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactHeaders(t *testing.T) {
	headers := map[string][]string{
		"Authorization":     {"Bearer sk-live-abc"},
		"X-API-Key":         {"caller-secret"},
		"Cookie":            {"session=xyz"},
		"Webhook-Signature": {"t=123,v1=deadbeef"},
		"Content-Type":      {"application/json", "ignored-second"},
		"X-Request-Id":      {"req-1"},
	}

	safe := RedactHeaders(headers)

	for _, k := range []string{"Authorization", "X-API-Key", "Cookie", "Webhook-Signature"} {
		assert.Equal(t, "[REDACTED]", safe[k], "%s must be redacted", k)
	}

	// Non-sensitive headers pass through, first value only.
	assert.Equal(t, "application/json", safe["Content-Type"])
	assert.Equal(t, "req-1", safe["X-Request-Id"])

	// The original values never leak through the redacted copy.
	for _, v := range safe {
		assert.NotContains(t, v, "sk-live-abc")
		assert.NotContains(t, v, "caller-secret")
		assert.NotContains(t, v, "deadbeef")
	}
}

func TestIsSensitiveHeaderMatchesCaseInsensitively(t *testing.T) {
	assert.True(t, isSensitiveHeader("AUTHORIZATION"))
	assert.True(t, isSensitiveHeader("x-api-key"))
	assert.True(t, isSensitiveHeader("Webhook-Signature"))
	assert.False(t, isSensitiveHeader("Accept"))
	assert.False(t, isSensitiveHeader("User-Agent"))
}
