package dto

import (
	"net/http"
	"strings"
)

// API error codes. Each domain error code X is reported as ERR_X.
const (
	ErrCodeInternal        = "ERR_INTERNAL"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists   = "ERR_ALREADY_EXISTS"
	ErrCodeInvalidState    = "ERR_INVALID_STATE"
	ErrCodeUnknownTier     = "ERR_UNKNOWN_TIER"
	ErrCodeDivisionByZero  = "ERR_DIVISION_BY_ZERO"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

const apiCodePrefix = "ERR_"

// statusByCode is the HTTP status of every API error code.
// Well-formed requests whose data cannot be billed get 422.
var statusByCode = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeAlreadyExists:   http.StatusConflict,
	ErrCodeInvalidState:    http.StatusConflict,
	ErrCodeUnknownTier:     http.StatusUnprocessableEntity,
	ErrCodeDivisionByZero:  http.StatusUnprocessableEntity,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the status for an API or domain error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[NormalizeErrorCode(code)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode maps a domain error code to its API code.
// API codes and codes without an API counterpart are returned unchanged.
func NormalizeErrorCode(code string) string {
	if strings.HasPrefix(code, apiCodePrefix) {
		return code
	}
	if _, ok := statusByCode[apiCodePrefix+code]; ok {
		return apiCodePrefix + code
	}
	return code
}
