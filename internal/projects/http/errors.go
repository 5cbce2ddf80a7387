package http

import (
	"errors"
	"net/http"

	"github.com/p4solution/portfolio-backend/internal/db"
	"github.com/p4solution/portfolio-backend/internal/media"
	"github.com/p4solution/portfolio-backend/internal/projects/domain"
	"github.com/p4solution/portfolio-backend/internal/projects/service"
)

// statusFor maps an error to its HTTP status and the message clients see.
// Server-side failures never expose internals in the message.
func statusFor(err error) (int, string) {
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Msg
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, media.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, media.ErrPayloadTooLarge), errors.Is(err, media.ErrTooManyFiles):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Project not found"
	case errors.Is(err, db.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	case errors.Is(err, service.ErrMediaStore):
		return http.StatusInternalServerError, "File upload failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
