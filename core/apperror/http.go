package apperror

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the status code the HTTP layer responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStaleVersion):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, ErrCacheUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
