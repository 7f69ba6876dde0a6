package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseAnthropicHeaders(t *testing.T) {
	reset := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		headers  map[string]string
		expected RateLimitInfo
	}{
		{
			name:     "empty_headers",
			headers:  map[string]string{},
			expected: RateLimitInfo{},
		},
		{
			name:     "retry_after_seconds",
			headers:  map[string]string{"retry-after": "12"},
			expected: RateLimitInfo{RetryAfter: 12 * time.Second},
		},
		{
			name:     "retry_after_invalid",
			headers:  map[string]string{"retry-after": "soon"},
			expected: RateLimitInfo{},
		},
		{
			name: "reset_and_remaining",
			headers: map[string]string{
				"anthropic-ratelimit-requests-reset":          reset.Format(time.RFC3339),
				"anthropic-ratelimit-requests-remaining":      "7",
				"anthropic-ratelimit-input-tokens-remaining":  "1000",
				"anthropic-ratelimit-output-tokens-remaining": "200",
			},
			expected: RateLimitInfo{
				ResetTime:             reset.Unix(),
				RequestsRemaining:     7,
				InputTokensRemaining:  1000,
				OutputTokensRemaining: 200,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}
			if got := ParseAnthropicHeaders(headers); got != tt.expected {
				t.Errorf("ParseAnthropicHeaders() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	at := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	d := parseRetryAfter(at)
	if d <= 58*time.Minute || d > time.Hour {
		t.Errorf("Expected about one hour, got %v", d)
	}
}
