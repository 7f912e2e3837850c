package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	tests := []struct {
		name    string
		message string
		code    int
	}{
		{name: "Invalid input error", message: "invalid input", code: 400},
		{name: "Internal server error", message: "internal server error", code: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewError(tt.message, tt.code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestGenerationErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindConfiguration, http.StatusBadRequest},
		{KindValidation, http.StatusBadRequest},
		{KindMalformedJSON, http.StatusBadRequest},
		{KindAuthentication, http.StatusInternalServerError},
		{KindRateLimit, http.StatusInternalServerError},
		{KindConnection, http.StatusInternalServerError},
		{KindTimeout, http.StatusInternalServerError},
		{KindUpstream, http.StatusInternalServerError},
		{KindEmptyResponse, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := NewGenerationError(tt.kind, "boom", nil)
			assert.Equal(t, tt.want, err.HTTPStatus())
		})
	}
}

func TestGenerationErrorWrapping(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewGenerationError(KindConnection, "Failed to connect to text generation service", cause)

	assert.Equal(t, "Failed to connect to text generation service: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("generate: %w", err)
	assert.Equal(t, KindConnection, KindOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.False(t, IsConfiguration(wrapped))
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsConfiguration(ErrMissingCredential))
	assert.False(t, IsRetryable(ErrMissingCredential))

	assert.True(t, IsValidation(NewGenerationError(KindValidation, "bad", nil)))
	assert.True(t, IsValidation(NewGenerationError(KindMalformedJSON, "bad", nil)))
	assert.False(t, IsRetryable(NewGenerationError(KindAuthentication, "bad", nil)))

	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("slides[0].title", "Slide title must be a string")
	assert.Equal(t, "slides[0].title", err.Field)
	assert.Equal(t, "Slide title must be a string", err.Error())
}
