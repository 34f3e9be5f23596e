// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input provided")
	ErrInvalidAddress    = errors.New("invalid wallet address")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrBusy              = errors.New("operation already in progress")
	ErrVersionConflict   = errors.New("record version conflict")
	ErrUnavailable       = errors.New("durable store unavailable")
)

// IsError reports whether err matches the given sentinel error.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
