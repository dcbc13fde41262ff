package vision

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderTimeout is a provider call that ran past its own deadline.
	ErrProviderTimeout = errors.New("vision provider timeout")

	// ErrProviderError covers transport failures and non-success HTTP statuses.
	ErrProviderError = errors.New("vision provider error")

	// ErrRateLimited is an HTTP 429 from a provider.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrProviderError)

	// ErrProviderSchema is a response that could not be normalized.
	ErrProviderSchema = errors.New("vision provider response schema mismatch")

	// ErrAllProvidersExhausted is returned when every eligible provider failed.
	ErrAllProvidersExhausted = errors.New("all vision providers exhausted")

	// ErrProviderNotConfigured marks an empty provider slot.
	ErrProviderNotConfigured = errors.New("vision provider not configured")

	// ErrUnknownPreference is an unrecognized provider preference.
	ErrUnknownPreference = errors.New("unknown provider preference")
)

// StatusError is a non-success HTTP response from a provider. It unwraps to
// ErrRateLimited for 429 and ErrProviderError otherwise.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == 429 {
		return ErrRateLimited
	}
	return ErrProviderError
}
