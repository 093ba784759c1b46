package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/ams-auth/internal/auth"
)

// Routing errors raised by the pipeline itself.
var (
	ErrNotFound         = errors.New("endpoint not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Error codes carried in the code field of error bodies.
const (
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeStrategyNotFound = "AUTHENTICATION_STRATEGY_NOT_FOUND"
	CodeIdentityMissing  = "USER_PROFILE_NOT_FOUND"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeEmailExists      = "EMAIL_EXISTS"
)

// errorEnvelope is the body of every failed response.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
}

// errorNames follows the client-facing naming of HTTP error classes.
var errorNames = map[int]string{
	http.StatusBadRequest:            "BadRequestError",
	http.StatusUnauthorized:          "UnauthorizedError",
	http.StatusForbidden:             "ForbiddenError",
	http.StatusNotFound:              "NotFoundError",
	http.StatusMethodNotAllowed:      "MethodNotAllowedError",
	http.StatusConflict:              "ConflictError",
	http.StatusRequestEntityTooLarge: "PayloadTooLargeError",
	http.StatusInternalServerError:   "InternalServerError",
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// classify maps an error to its HTTP status and client-visible body.
// *auth.Error is checked first so a refresh failure caused by an expired
// refresh token stays a plain 401 with its own message; only a bare
// ErrTokenExpired from access token verification yields TOKEN_EXPIRED.
func classify(err error) errorBody {
	var authErr *auth.Error
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &authErr):
		return newErrorBody(kindStatus(authErr.Kind), authErr.Message, "")
	case errors.Is(err, auth.ErrTokenExpired):
		return newErrorBody(http.StatusUnauthorized, CodeTokenExpired, CodeTokenExpired)
	case errors.Is(err, auth.ErrStrategyNotFound):
		return newErrorBody(http.StatusUnauthorized, err.Error(), CodeStrategyNotFound)
	case errors.Is(err, auth.ErrIdentityMissing):
		return newErrorBody(http.StatusUnauthorized, "No user profile found for this request.", CodeIdentityMissing)
	case errors.Is(err, auth.ErrTokenInvalid):
		return newErrorBody(http.StatusUnauthorized, "Error verifying token: invalid token", CodeInvalidToken)
	case errors.Is(err, auth.ErrEmailExists):
		return newErrorBody(http.StatusConflict, "Email is already registered.", CodeEmailExists)
	case errors.Is(err, ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		return newErrorBody(http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrMethodNotAllowed):
		return newErrorBody(http.StatusMethodNotAllowed, err.Error(), "")
	case errors.As(err, &maxBytes):
		return newErrorBody(http.StatusRequestEntityTooLarge, "Request body is too large.", "")
	default:
		return newErrorBody(http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func kindStatus(kind error) int {
	switch {
	case errors.Is(kind, auth.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(kind, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, auth.ErrUnauthorized), errors.Is(kind, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func newErrorBody(status int, message, code string) errorBody {
	name, ok := errorNames[status]
	if !ok {
		name = http.StatusText(status)
	}
	return errorBody{StatusCode: status, Name: name, Message: message, Code: code}
}

// writeFailure is the single place where errors become HTTP responses.
// Server errors are logged with their cause; the client sees a generic
// message.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	body := classify(err)

	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", body.StatusCode,
		"request_id", requestIDFrom(r.Context()),
		"error", err,
	}
	if body.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Debug("request rejected", attrs...)
	}

	writeJSON(w, body.StatusCode, errorEnvelope{Error: body})
}
