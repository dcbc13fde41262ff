package report

import "errors"

// ErrInvalidInput is returned for internally inconsistent builder input.
var ErrInvalidInput = errors.New("invalid report input")
