package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnauthorized        = errors.New("caller does not own the referenced entity")
	ErrSessionUnpaid       = errors.New("checkout session has no completed payment")
	ErrUpstreamUnavailable = errors.New("billing provider unavailable")
	ErrOperationFailed     = errors.New("storage operation failed")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrInvalidExecContext  = errors.New("invalid transaction execution context")
)

// Retryable reports whether the caller (or the provider's redelivery
// mechanism) should attempt the operation again. Validation, authorization
// and not-found outcomes are final; everything else is assumed transient.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrSessionUnpaid),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists):
		return false
	}
	return true
}
