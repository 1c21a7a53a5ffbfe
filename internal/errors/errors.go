package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Domain error taxonomy. Services wrap these with fmt.Errorf("...: %w", ...)
// so callers can classify failures with errors.Is.
var (
	// ErrNotFound means a referenced user or message does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the actor is known but not allowed to perform the
	// operation (e.g. deleting someone else's message).
	ErrForbidden = errors.New("forbidden")

	// ErrNotAuthorized means the actor identity could not be resolved.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidArgument means the request was malformed.
	ErrInvalidArgument = errors.New("invalid argument")
)

// HTTPStatus converts service/infra errors into HTTP status codes.
// Keeps the handler layer clean by centralizing error mapping.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, ErrNotAuthorized):
		return http.StatusUnauthorized

	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// NotFound wraps a message with ErrNotFound.
func NotFound(msg string) error { return wrap(ErrNotFound, msg) }

// Forbidden wraps a message with ErrForbidden.
func Forbidden(msg string) error { return wrap(ErrForbidden, msg) }

// InvalidArgument wraps a message with ErrInvalidArgument.
func InvalidArgument(msg string) error { return wrap(ErrInvalidArgument, msg) }

type wrapped struct {
	sentinel error
	msg      string
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.sentinel }

func wrap(sentinel error, msg string) error {
	if msg == "" {
		return sentinel
	}
	return &wrapped{sentinel: sentinel, msg: msg}
}
