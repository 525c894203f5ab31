package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiError(t *testing.T) {
	tcases := []struct {
		name            string
		apiErr          *ApiError
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "bad request",
			apiErr:          NewBadRequestError(),
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "bad request",
		},
		{
			name:            "not found",
			apiErr:          NewNotFoundError(),
			expectedStatus:  http.StatusNotFound,
			expectedMessage: "not found",
		},
		{
			name:            "unauthorized",
			apiErr:          NewUnauthorizedError(),
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "unauthorized",
		},
		{
			name:            "internal server error",
			apiErr:          NewInternalServerError(nil),
			expectedStatus:  http.StatusInternalServerError,
			expectedMessage: "internal server error",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStatus, tc.apiErr.StatusCode, "expected status code to match")
			assert.Equal(t, tc.expectedMessage, tc.apiErr.Message, "expected lowercased status text")
			assert.Equal(t, tc.expectedMessage, tc.apiErr.Error(), "expected message-only error string without a cause")
		})
	}
}

func TestApiError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	apiErr := NewInternalServerError(cause)

	assert.ErrorIs(t, apiErr, cause, "expected wrapped cause to be reachable via errors.Is")
	assert.Contains(t, apiErr.Error(), "connection refused", "expected cause in error string")
}
