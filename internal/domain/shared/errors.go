package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrOrderNotFound       = NewDomainError("ORDER_NOT_FOUND", "Order not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidStatus       = NewDomainError("INVALID_STATUS", "Operation not allowed in current order status")
	ErrMissingKey          = NewDomainError("MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required")
	ErrInvalidKey          = NewDomainError("INVALID_KEY", "Idempotency key must be between 8 and 255 characters")
)
