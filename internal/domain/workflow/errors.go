package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidAction is returned for decisions other than approve or reject
	ErrInvalidAction = errors.New("invalid action")

	// ErrNotFound is returned when the invoice does not exist
	ErrNotFound = errors.New("invoice not found")

	// ErrInvalidPayload is returned for malformed or incomplete decision requests
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrStorageUnavailable wraps persistence failures during create or transition
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotificationFailure is returned when the notifier could not deliver
	ErrNotificationFailure = errors.New("notification failure")
)
