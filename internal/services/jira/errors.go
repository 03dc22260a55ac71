package jira

import (
	"fmt"
	"time"
)

// APIError represents an error response from the tracker API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// AuthenticationError is returned when a request still gets a 401 after the
// one automatic re-authentication retry, or when the handshake itself is
// rejected.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// CaptchaError signals the server requires a manual browser-based login
// because of too many failed attempts. It is not fatal: the caller resolves
// it with a guided browser step and retries the handshake once.
type CaptchaError struct {
	LoginURL string
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("too many failed login attempts, a CAPTCHA must be answered at %s", e.LoginURL)
}

// RateLimitError represents a 429 from the tracker.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("tracker rate limit exceeded, retry after %v", e.RetryAfter)
}
