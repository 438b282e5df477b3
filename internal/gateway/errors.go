package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned when the provider secret key is missing.
	ErrInvalidAPIKey = errors.New("gateway: invalid or missing API key")

	// ErrTransactionNotFound is returned when the provider does not know the transaction.
	ErrTransactionNotFound = errors.New("gateway: transaction not found")

	// ErrInvalidWebhookSignature is returned when webhook authentication fails.
	ErrInvalidWebhookSignature = errors.New("gateway: invalid webhook signature")

	// ErrMalformedResponse is returned when the provider answers with an unexpected body.
	ErrMalformedResponse = errors.New("gateway: malformed response")
)

// APIError wraps a non-success answer from a provider API.
type APIError struct {
	Provider      string // provider name
	StatusCode    int    // HTTP status code
	Message       string // provider message, if any
	OriginalError error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status: %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *APIError) IsTemporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
