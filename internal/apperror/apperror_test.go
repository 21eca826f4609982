package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidation(t *testing.T) {
	err := Validation("path", "path is required")

	assert.Equal(t, "path is required", err.Error())
	assert.Equal(t, "path", err.Field)
	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConfiguration))
}

func TestConfiguration(t *testing.T) {
	err := fmt.Errorf("relay: %w", Configuration("credential missing"))

	assert.ErrorIs(t, err, ErrConfiguration)
	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestGuardErrors(t *testing.T) {
	forbidden := Forbidden()
	assert.ErrorIs(t, forbidden, ErrForbidden)
	assert.Equal(t, "FORBIDDEN", forbidden.Code)
	assert.Equal(t, "Forbidden", forbidden.Error())

	method := MethodNotAllowed()
	assert.ErrorIs(t, method, ErrMethodNotAllowed)
	assert.Equal(t, "METHOD_NOT_ALLOWED", method.Code)
}

func TestNotFound(t *testing.T) {
	err := NotFound("pin", "abc")

	assert.Equal(t, "pin not found with id abc", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpstreamError(t *testing.T) {
	assert.Equal(t, "upstream returned status 422: sha wasn't supplied", (&UpstreamError{Status: 422, Message: "sha wasn't supplied"}).Error())
	assert.Equal(t, "upstream returned status 502", (&UpstreamError{Status: 502}).Error())
}

func TestIsClientFault(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation", Validation("content", "content is required"), true},
		{"forbidden", fmt.Errorf("origin %q: %w", "https://evil.example", Forbidden()), true},
		{"method", MethodNotAllowed(), true},
		{"configuration", Configuration("missing token"), false},
		{"upstream", &UpstreamError{Status: 500}, false},
		{"timeout", ErrTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsClientFault(tt.err))
		})
	}
}
