package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/invoice-approval/internal/apierror"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/token"
)

func TestNewAPIError(t *testing.T) {
	apiErr := apierror.NewAPIError(apierror.ErrNotFound, "invoice not found", map[string]int64{"id": 4})

	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
	assert.Equal(t, "NOT_FOUND: invoice not found", apiErr.Error())
	assert.Equal(t, map[string]int64{"id": 4}, apiErr.Details)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     apierror.ErrorCode
		message  string
		expected int
	}{
		{
			name:     "invalid token hides detail",
			err:      fmt.Errorf("%w: bad signature", token.ErrInvalidToken),
			code:     apierror.ErrInvalidToken,
			message:  apierror.InvalidLinkMessage,
			expected: http.StatusBadRequest,
		},
		{
			name:     "invalid payload keeps reason",
			err:      fmt.Errorf("%w: action must be approve or reject", workflow.ErrInvalidPayload),
			code:     apierror.ErrInvalidPayload,
			message:  "invalid payload: action must be approve or reject",
			expected: http.StatusBadRequest,
		},
		{
			name:     "not found",
			err:      fmt.Errorf("get invoice 9: %w", workflow.ErrNotFound),
			code:     apierror.ErrNotFound,
			message:  "invoice not found",
			expected: http.StatusNotFound,
		},
		{
			name:     "storage unavailable",
			err:      fmt.Errorf("%w: %w", errors.New("database is locked"), workflow.ErrStorageUnavailable),
			code:     apierror.ErrStorageUnavailable,
			message:  "storage unavailable",
			expected: http.StatusServiceUnavailable,
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			code:     apierror.ErrInternalServer,
			message:  "internal server error",
			expected: http.StatusInternalServerError,
		},
		{
			name:     "already an api error",
			err:      apierror.NewAPIError(apierror.ErrUnauthorized, "invalid signature", nil),
			code:     apierror.ErrUnauthorized,
			message:  "invalid signature",
			expected: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := apierror.FromError(tt.err)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.expected, apierror.MapErrorToHTTPStatus(tt.err))
		})
	}
}
