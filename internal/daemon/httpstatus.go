package daemon

import (
	"errors"
	"net/http"

	"scriptorium/internal/services"
)

// statusForError maps the internal error taxonomy to HTTP status codes.
// This is the only place the taxonomy crosses into transport semantics.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotAvailable):
		return http.StatusConflict
	case errors.Is(err, services.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, services.ErrMalformedDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
