package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"validation", Validation("Passwords do not match"), KindValidation, true},
		{"wrapped invalid state", fmt.Errorf("submit: %w", InvalidState("No document or video selected.")), KindInvalidState, true},
		{"kind mismatch", Storage("set", errors.New("disk full")), KindRemote, false},
		{"plain error", errors.New("boom"), KindValidation, false},
		{"nil", nil, KindValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is(tt.err, tt.kind))
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")
	err := Remote("login", 0, "request failed", cause)

	assert.Equal(t, "login: request failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "request failed", UserMessage(err))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}
