package auth

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error carries exactly one of these, and errors.Is
// matches against it, so callers can branch on the kind without a type
// assertion.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
)

// Sentinel errors for token, identity and store operations.
var (
	ErrTokenInvalid         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token has expired")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserInactive         = errors.New("user account is inactive")
	ErrEmailExists          = errors.New("email already registered")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrStrategyNotFound     = errors.New("authentication strategy not found")
	ErrIdentityMissing      = errors.New("no identity in request context")
)

// Message sent to clients when a permission check fails.
const MsgInvalidAccessPermission = "INVALID_ACCESS_PERMISSION"

// Error is a classified auth failure. Message is safe to show to clients;
// Cause is kept for logging and never rendered.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Unauthorized returns an Unauthorized error wrapping cause.
func Unauthorized(message string, cause error) *Error {
	return &Error{Kind: ErrUnauthorized, Message: message, Cause: cause}
}

// Forbidden returns a Forbidden error.
func Forbidden(message string) *Error {
	return &Error{Kind: ErrForbidden, Message: message}
}

// BadRequest returns a BadRequest error wrapping cause.
func BadRequest(message string, cause error) *Error {
	return &Error{Kind: ErrBadRequest, Message: message, Cause: cause}
}

// InvalidCredentials returns the login failure error. The cause records
// which check failed; clients only ever see the generic message.
func InvalidCredentials(cause error) *Error {
	return &Error{Kind: ErrInvalidCredentials, Message: "Invalid email or password.", Cause: cause}
}
