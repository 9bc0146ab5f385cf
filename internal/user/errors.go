package user

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	ErrEmailTaken         = errors.New("EMAIL_TAKEN")
	ErrNotFound           = errors.New("NOT_FOUND")
	ErrInvalidUser        = errors.New("INVALID_USER")
	ErrNoSession          = errors.New("NO_SESSION")
	ErrTooManyAttempts    = errors.New("TOO_MANY_ATTEMPTS")
)

var errorStatus = []struct {
	err    error
	status int
}{
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrNoSession, http.StatusUnauthorized},
	{ErrEmailTaken, http.StatusConflict},
	{ErrNotFound, http.StatusNotFound},
	{ErrInvalidUser, http.StatusBadRequest},
	{ErrTooManyAttempts, http.StatusTooManyRequests},
}

// Classify returns the client-facing code and HTTP status for err.
func Classify(err error) (code string, status int) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.err.Error(), e.status
		}
	}
	return "INTERNAL", http.StatusInternalServerError
}
