package apperror

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error is an expected, typed API failure. Anything that is not an *Error is
// treated as unexpected and surfaced as a generic 500 without internal detail.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func UserExists() *Error {
	return New(http.StatusBadRequest, "USER_EXISTS", "user already exists")
}

// InvalidCredentials is deliberately identical for unknown email and wrong
// password so callers cannot enumerate accounts.
func InvalidCredentials() *Error {
	return New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func InvalidToken() *Error {
	return New(http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token")
}

func Forbidden() *Error {
	return New(http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, "NOT_FOUND", message)
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, "BAD_REQUEST", message)
}

type envelope struct {
	Error *Error `json:"error"`
}

// Write renders err as {"error":{"code","message"}}. Unexpected errors become
// a 500 INTERNAL with no detail leaked; the caller is responsible for logging
// and capturing them before handing off here.
func Write(w http.ResponseWriter, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = New(http.StatusInternalServerError, "INTERNAL", "something went wrong")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(envelope{Error: appErr})
}
