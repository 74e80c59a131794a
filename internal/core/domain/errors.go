package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrInvalidOption  = errors.New("invalid option for this poll")
	ErrTooFewOptions  = errors.New("a poll needs at least two options")
	ErrTooManyOptions = errors.New("a poll allows at most ten options")
	ErrSocketClosed   = errors.New("realtime client is closed")
)

// APIError is a non-success response from the backend, either a non-2xx
// status or an envelope with success=false.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Is maps 404 responses onto ErrPollNotFound so callers can use errors.Is
// without inspecting status codes.
func (e *APIError) Is(target error) bool {
	return target == ErrPollNotFound && e.Status == 404
}
