package domain

import "errors"

var (
	// ErrNotFound is returned by the transport when a chat, message or reaction no longer exists
	ErrNotFound = errors.New("not found")

	// ErrPermission is returned by the transport when the bot may not perform an operation
	ErrPermission = errors.New("permission denied")
)

// ValidationError describes a violated poll creation constraint.
// Message is shown to the invoking user as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
