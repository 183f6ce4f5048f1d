package response

import (
	"net/http"
)

// StatusTicketsRemaining is the soft-conflict status returned when a reservation
// asks for more tickets than are left. Clients re-render availability and retry.
const StatusTicketsRemaining = 470

// Response represents the standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents error details in the response
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// --- Error Code Constants ---

const (
	// Client errors (4xx)
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeTooLarge        = "PAYLOAD_TOO_LARGE"
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"

	// Server errors (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Booking errors
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeTicketsRemaining   = "TICKETS_REMAINING"
	ErrCodeInsufficientStock  = "INSUFFICIENT_TICKETS"
	ErrCodeInvalidReservation = "INVALID_RESERVATION"
	ErrCodeAlreadyProcessed   = "ALREADY_PROCESSED"
	ErrCodePaymentFailed      = "PAYMENT_FAILED"
)

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes
var ErrorCodeToHTTPStatus = map[string]int{
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooLarge:           http.StatusRequestEntityTooLarge,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeInternalError:      http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeValidationFailed:   http.StatusBadRequest,
	ErrCodeTicketsRemaining:   StatusTicketsRemaining,
	ErrCodeInsufficientStock:  http.StatusBadRequest,
	ErrCodeInvalidReservation: http.StatusBadRequest,
	ErrCodeAlreadyProcessed:   http.StatusGone,
	ErrCodePaymentFailed:      http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// --- Response Builders ---

// Success creates a success response with data
func Success(data interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// Error creates an error response
func Error(code string, message string) *Response {
	return &Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// ErrorWithDetails creates an error response with additional details
func ErrorWithDetails(code string, message string, details map[string]string) *Response {
	return &Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// --- Common Error Responses ---

// BadRequest creates a bad request error response
func BadRequest(message string) *Response {
	return Error(ErrCodeBadRequest, message)
}

// Unauthorized creates an unauthorized error response
func Unauthorized(message string) *Response {
	if message == "" {
		message = "Authentication required"
	}
	return Error(ErrCodeUnauthorized, message)
}

// Forbidden creates a forbidden error response
func Forbidden(message string) *Response {
	if message == "" {
		message = "Access denied"
	}
	return Error(ErrCodeForbidden, message)
}

// NotFound creates a not found error response
func NotFound(message string) *Response {
	if message == "" {
		message = "Resource not found"
	}
	return Error(ErrCodeNotFound, message)
}

// InternalError creates an internal server error response
func InternalError(message string) *Response {
	if message == "" {
		message = "An internal error occurred"
	}
	return Error(ErrCodeInternalError, message)
}

// ValidationFailed creates a validation error response with field details
func ValidationFailed(details map[string]string) *Response {
	return ErrorWithDetails(ErrCodeValidationFailed, "Validation failed", details)
}

// TicketsRemaining creates the soft-conflict response carrying the exact number of
// tickets still available so the client can offer a smaller quantity.
func TicketsRemaining(remaining int) *Response {
	return &Response{
		Success: false,
		Data:    map[string]int{"tickets_remaining": remaining},
		Error: &ErrorInfo{
			Code:    ErrCodeTicketsRemaining,
			Message: "not enough tickets remaining",
		},
	}
}

// InsufficientStock creates the hard-conflict response used when the database
// rejected a reservation. No count is given since it is already stale.
func InsufficientStock(message string) *Response {
	if message == "" {
		message = "insufficient tickets remaining"
	}
	return Error(ErrCodeInsufficientStock, message)
}

// PayloadTooLarge creates a body size error response
func PayloadTooLarge(message string) *Response {
	if message == "" {
		message = "Request body too large"
	}
	return Error(ErrCodeTooLarge, message)
}

// TooManyRequests creates a rate limit error response
func TooManyRequests(message string) *Response {
	if message == "" {
		message = "Too many requests, please try again later"
	}
	return Error(ErrCodeTooManyRequests, message)
}

// ServiceUnavailable creates a service unavailable error response
func ServiceUnavailable(message string) *Response {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return Error(ErrCodeServiceUnavailable, message)
}
