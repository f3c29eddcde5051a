package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeInvalidName is used when an item name is empty or too long
	ErrCodeInvalidName = "ERR_INVALID_NAME"
	// ErrCodeInvalidQuantity is used when a quantity is out of range
	ErrCodeInvalidQuantity = "ERR_INVALID_QUANTITY"
	// ErrCodeInvalidMedia is used when an upload is not an acceptable image or video
	ErrCodeInvalidMedia = "ERR_INVALID_MEDIA"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeNoFrames is used when a video analysis has no frames to browse
	ErrCodeNoFrames = "ERR_NO_FRAMES"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConcurrencyConflict is used when a conditional update lost a race
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Upstream error codes
const (
	// ErrCodeDetectionFailed is used when the detection provider answered with an error
	ErrCodeDetectionFailed = "ERR_DETECTION_FAILED"
	// ErrCodeDetectionUnavailable is used when the detection provider could not be reached in time
	ErrCodeDetectionUnavailable = "ERR_DETECTION_UNAVAILABLE"
	// ErrCodeInventoryUnavailable is used when the item store snapshot could not be read
	ErrCodeInventoryUnavailable = "ERR_INVENTORY_UNAVAILABLE"
)

// Stream error codes
const (
	// ErrCodeMaxConnections is used when the realtime subscriber limit is reached
	ErrCodeMaxConnections = "ERR_MAX_CONNECTIONS_REACHED"
	// ErrCodeShuttingDown is used when the realtime hub no longer accepts subscribers
	ErrCodeShuttingDown = "ERR_SHUTTING_DOWN"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeInvalidName:     http.StatusBadRequest,
	ErrCodeInvalidQuantity: http.StatusBadRequest,
	ErrCodeInvalidMedia:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeNoFrames:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Input errors
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Upstream errors
	ErrCodeDetectionFailed:      http.StatusBadGateway,
	ErrCodeDetectionUnavailable: http.StatusGatewayTimeout,
	ErrCodeInventoryUnavailable: http.StatusServiceUnavailable,

	// Stream errors
	ErrCodeMaxConnections: http.StatusServiceUnavailable,
	ErrCodeShuttingDown:   http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":               ErrCodeNotFound,
	"NO_FRAMES":               ErrCodeNoFrames,
	"ALREADY_EXISTS":          ErrCodeAlreadyExists,
	"CONCURRENT_MODIFICATION": ErrCodeConcurrencyConflict,
	"INVALID_INPUT":           ErrCodeInvalidInput,
	"INVALID_NAME":            ErrCodeInvalidName,
	"INVALID_QUANTITY":        ErrCodeInvalidQuantity,
	"INVALID_MEDIA":           ErrCodeInvalidMedia,
	"DETECTION_UNAVAILABLE":   ErrCodeDetectionUnavailable,
	"INVENTORY_FETCH_FAILED":  ErrCodeInventoryUnavailable,
	"VALIDATION_ERROR":        ErrCodeValidation,
	"BAD_REQUEST":             ErrCodeBadRequest,
	"INTERNAL_ERROR":          ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
