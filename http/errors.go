package http

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadRequest       = errors.New("http: bad request")
	ErrUnauthorized     = errors.New("http: unauthorized")
	ErrNotFound         = errors.New("http: not found")
	ErrResponseFinished = errors.New("http: response already finished")
)

// Error carries an explicit status code for the dispatcher.
type Error struct {
	Status int
	Err    error
}

func NewError(status int, format string, args ...any) *Error {
	return &Error{Status: status, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf maps an error to the status code the dispatcher answers with.
func StatusOf(err error) int {
	var statusErr *Error
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &statusErr) && statusErr.Status != 0:
		return statusErr.Status
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
