package apperror_test

import (
	"errors"
	"fmt"
	"testing"

	"lsadf-backend/core/apperror"

	"github.com/stretchr/testify/assert"
)

func TestIsBusiness(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NotFound", fmt.Errorf("currency: %w", apperror.ErrNotFound), true},
		{"Conflict", apperror.ErrConflict, true},
		{"StaleVersion", fmt.Errorf("extend: %w", apperror.ErrStaleVersion), true},
		{"InvalidValue", apperror.ErrInvalidValue, true},
		{"CacheUnavailable", apperror.ErrCacheUnavailable, false},
		{"Transient", errors.New("i/o timeout"), false},
		{"Nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperror.IsBusiness(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 200, apperror.HTTPStatus(nil))
	assert.Equal(t, 404, apperror.HTTPStatus(fmt.Errorf("get: %w", apperror.ErrNotFound)))
	assert.Equal(t, 409, apperror.HTTPStatus(apperror.ErrConflict))
	assert.Equal(t, 412, apperror.HTTPStatus(apperror.ErrStaleVersion))
	assert.Equal(t, 400, apperror.HTTPStatus(apperror.ErrInvalidValue))
	assert.Equal(t, 503, apperror.HTTPStatus(apperror.ErrCacheUnavailable))
	assert.Equal(t, 500, apperror.HTTPStatus(errors.New("boom")))
}
