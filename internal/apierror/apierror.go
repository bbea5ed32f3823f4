// Package apierror maps domain errors onto typed API error codes and HTTP statuses.
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/internal/token"
)

type ErrorCode string

const (
	ErrInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrInternalServer     ErrorCode = "INTERNAL_SERVER_ERROR"
)

// InvalidLinkMessage is the only detail ever shown for a bad action token
const InvalidLinkMessage = "invalid or expired link"

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// FromError classifies err. Messages for token and storage failures are fixed
// strings so internal details never reach the client.
func FromError(err error) APIError {
	var apiErr APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, token.ErrInvalidToken):
		return NewAPIError(ErrInvalidToken, InvalidLinkMessage, nil)
	case errors.Is(err, workflow.ErrInvalidPayload), errors.Is(err, workflow.ErrInvalidAction):
		return NewAPIError(ErrInvalidPayload, err.Error(), nil)
	case errors.Is(err, workflow.ErrNotFound):
		return NewAPIError(ErrNotFound, "invoice not found", nil)
	case errors.Is(err, workflow.ErrStorageUnavailable):
		return NewAPIError(ErrStorageUnavailable, "storage unavailable", nil)
	default:
		return NewAPIError(ErrInternalServer, "internal server error", nil)
	}
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		apiErr = FromError(err)
	}
	switch apiErr.Code {
	case ErrInvalidToken, ErrInvalidPayload:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrNotFound:
		return http.StatusNotFound
	case ErrStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
