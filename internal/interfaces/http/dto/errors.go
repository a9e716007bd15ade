package dto

import "net/http"

// Error codes exposed by the API, matching the domain error taxonomy
const (
	// ErrCodeInternal is used for unexpected server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeValidation is used for malformed or missing request fields
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeBadRequest is used for requests that cannot be parsed
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeOrderNotFound is used when the referenced order does not exist
	ErrCodeOrderNotFound = "ORDER_NOT_FOUND"
	// ErrCodeInvalidStatus is used when an action is not allowed in the
	// order's current status; the message carries current and allowed sets
	ErrCodeInvalidStatus = "INVALID_STATUS"
	// ErrCodeMissingKey is used when the Idempotency-Key header is absent
	ErrCodeMissingKey = "MISSING_IDEMPOTENCY_KEY"
	// ErrCodeInvalidKey is used when the idempotency key shape is invalid
	ErrCodeInvalidKey = "INVALID_KEY"
	// ErrCodeConcurrencyConflict is used when an optimistic write loses
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	// ErrCodeUnknownEvent is used for unrecognized webhook events
	ErrCodeUnknownEvent = "UNKNOWN_EVENT"
	// ErrCodeInvalidSignature is used when webhook signature checks fail
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	// ErrCodeRequestTooLarge is used when the request body exceeds the limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeOrderNotFound:       http.StatusNotFound,
	ErrCodeInvalidStatus:       http.StatusBadRequest,
	ErrCodeMissingKey:          http.StatusBadRequest,
	ErrCodeInvalidKey:          http.StatusBadRequest,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeUnknownEvent:        http.StatusBadRequest,
	ErrCodeInvalidSignature:    http.StatusUnauthorized,
	ErrCodeRequestTooLarge:     http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500 Internal Server Error.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
