package workflow

import (
	"testing"
	"time"

	"lsadf-backend/core/apperror"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		policy  string
		invalid bool
	}{
		{"", false},
		{CancelPolicyFlush, false},
		{CancelPolicyDiscard, false},
		{"Discard", true},
		{"flsuh", true},
	}

	for _, tt := range tests {
		t.Run("policy="+tt.policy, func(t *testing.T) {
			err := Config{CancelPolicy: tt.policy}.Validate()
			if tt.invalid {
				assert.ErrorIs(t, err, apperror.ErrInvalidValue)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: time.Millisecond}.withDefaults()
	assert.Equal(t, CancelPolicyFlush, cfg.CancelPolicy)
	assert.Equal(t, time.Second, cfg.MaxBackoff)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 1, cfg.MaxAttempts)
}
