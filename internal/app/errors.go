package service

import "errors"

var (
	// ErrInvalidRequest is a structurally unusable analysis request.
	ErrInvalidRequest = errors.New("invalid analysis request")

	// ErrBatchTooLarge is a batch above the configured maximum.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
)
