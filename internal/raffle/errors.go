package raffle

import (
	"errors"
	"net/http"
)

// Each sentinel's message is the code clients branch on.
var (
	ErrNoOpenRaffle        = errors.New("NO_OPEN_RAFFLE")
	ErrNoRegistrations     = errors.New("NO_REGISTRATIONS")
	ErrMultipleOpenRaffles = errors.New("MULTIPLE_OPEN_RAFFLES")
	ErrRaffleAlreadyOpen   = errors.New("RAFFLE_ALREADY_OPEN")
	ErrAlreadyRegistered   = errors.New("ALREADY_REGISTERED")
	ErrExecutionFailed     = errors.New("EXECUTION_FAILED")
	ErrInvalidRaffle       = errors.New("INVALID_RAFFLE")
	ErrInvalidTransition   = errors.New("INVALID_TRANSITION")
	ErrNotFound            = errors.New("NOT_FOUND")
)

var errorStatus = []struct {
	err    error
	status int
}{
	// ErrExecutionFailed wraps the underlying cause, so it is matched first.
	{ErrExecutionFailed, http.StatusInternalServerError},
	{ErrNoOpenRaffle, http.StatusNotFound},
	{ErrNoRegistrations, http.StatusConflict},
	{ErrMultipleOpenRaffles, http.StatusInternalServerError},
	{ErrRaffleAlreadyOpen, http.StatusConflict},
	{ErrAlreadyRegistered, http.StatusConflict},
	{ErrInvalidRaffle, http.StatusBadRequest},
	{ErrInvalidTransition, http.StatusConflict},
	{ErrNotFound, http.StatusNotFound},
}

// Classify returns the client-facing code and HTTP status for err.
// Unknown errors map to INTERNAL / 500.
func Classify(err error) (code string, status int) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.err.Error(), e.status
		}
	}
	return "INTERNAL", http.StatusInternalServerError
}
