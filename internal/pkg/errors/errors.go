package errors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalid           = errors.New("invalid")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyInFlight   = errors.New("document is already being processed")
	ErrTransientProvider = errors.New("provider temporarily unavailable")
	ErrPermanentContent  = errors.New("content cannot be embedded")
	ErrInternal          = errors.New("internal")
)

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsAlreadyInFlight(err error) bool {
	return errors.Is(err, ErrAlreadyInFlight)
}

// IsRetryable reports whether the embedding pipeline may retry after err.
// Permanent content failures and ownership errors are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanentContent) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
		return false
	}
	return true
}
