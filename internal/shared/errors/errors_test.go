package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValidationError(t *testing.T) {
	tests := []struct {
		name    string
		message string
		err     error
		want    string
	}{
		{
			name:    "validation error with underlying error",
			message: "Invalid input",
			err:     fmt.Errorf("field required"),
			want:    "VALIDATION_ERROR: Invalid input - field required",
		},
		{
			name:    "validation error without underlying error",
			message: "Invalid input",
			err:     nil,
			want:    "VALIDATION_ERROR: Invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.message, tt.err)
			assert.Equal(t, "VALIDATION_ERROR", err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, http.StatusBadRequest, err.Status())
		})
	}
}

func TestNewNotFoundError_WrapsSentinel(t *testing.T) {
	err := NewNotFoundError("Channel not found", nil)

	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.True(t, Is(err, ErrNotFound))
	assert.Equal(t, http.StatusNotFound, err.Status())
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("register rule: %w", NewConflictError("duplicate", nil))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status())
	assert.True(t, Is(wrapped, ErrConflict))
	assert.False(t, Is(wrapped, ErrNotFound))

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestAppError_Status(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewInternalError("boom", nil), http.StatusInternalServerError},
		{NewUnauthorizedError("nope", nil), http.StatusUnauthorized},
		{&AppError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Status())
		})
	}
}

func TestValidationError_MatchesInvalid(t *testing.T) {
	err := fmt.Errorf("register: %w", NewValidationError("bad priority", nil))

	assert.True(t, Is(err, ErrInvalid))
	assert.False(t, Is(err, ErrNotFound))
}
