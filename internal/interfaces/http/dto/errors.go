package dto

import "net/http"

// Error codes returned in the response envelope. Domain errors keep their
// own code; these cover failures raised by the HTTP layer itself.
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeInvalidID  = "INVALID_ID"
	ErrCodeRateLimit  = "RATE_LIMIT_EXCEEDED"
	ErrCodeTooLarge   = "REQUEST_TOO_LARGE"

	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeInvalidPeriodKey = "INVALID_PERIOD_KEY"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeOptimisticLock   = "OPTIMISTIC_LOCK_ERROR"
	ErrCodeInvalidState     = "INVALID_STATE"
	ErrCodeLedgerApproved   = "LEDGER_APPROVED"
	ErrCodeUnsupported      = "UNSUPPORTED_FORMAT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,
	ErrCodeInvalidID:  http.StatusBadRequest,
	ErrCodeRateLimit:  http.StatusTooManyRequests,
	ErrCodeTooLarge:   http.StatusRequestEntityTooLarge,

	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidPeriodKey: http.StatusBadRequest,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeAlreadyExists:    http.StatusConflict,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeOptimisticLock:   http.StatusConflict,
	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodeLedgerApproved:   http.StatusUnprocessableEntity,
	ErrCodeUnsupported:      http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps older spellings still produced by some
// collaborators onto the codes above
var LegacyErrorCodeMapping = map[string]string{
	"CONCURRENCY_CONFLICT": ErrCodeOptimisticLock,
	"ERR_NOT_FOUND":        ErrCodeNotFound,
	"ERR_VALIDATION":       ErrCodeValidation,
}

// NormalizeErrorCode converts a legacy error code to its current form.
// Other codes are returned unchanged.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
