package feishu

import (
	"errors"
	"fmt"
	"net/http"
)

// Feishu business codes seen when a message or chat is gone or the bot may not touch it
const (
	codeMessageRecalled  = 230011
	codeBotNotInChat     = 230002
	codeNoPermission     = 230027
	codeReactionNotOwned = 231001
)

// APIError is a non-success response from the Open API
type APIError struct {
	Op     string
	Status int // HTTP status
	Code   int // Feishu business code
	Msg    string
}

func newAPIError(op string, status, code int, msg string) *APIError {
	return &APIError{Op: op, Status: status, Code: code, Msg: msg}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error: %s (status=%d, code=%d)", e.Op, e.Msg, e.Status, e.Code)
}

// NotFound reports whether the target no longer exists
func (e *APIError) NotFound() bool {
	return e.Status == http.StatusNotFound || e.Code == codeMessageRecalled
}

// Forbidden reports whether the bot lacks permission for the call
func (e *APIError) Forbidden() bool {
	switch e.Code {
	case codeBotNotInChat, codeNoPermission, codeReactionNotOwned:
		return true
	}
	return e.Status == http.StatusForbidden
}

// IsNotFound reports whether err is an APIError for a missing target
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

// IsForbidden reports whether err is an APIError for a permission failure
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Forbidden()
}
