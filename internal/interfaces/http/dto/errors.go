package dto

import (
	"errors"
	"net/http"

	"github.com/erp/order-reconciler/internal/domain/shared"
)

// Transport error codes. Domain errors keep the code they were raised with.
const (
	ErrCodeInternal             = "INTERNAL_ERROR"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeInvalidJSON          = "INVALID_JSON"
	ErrCodeRequestTooLarge      = "REQUEST_TOO_LARGE"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodePartialFailure       = "PARTIAL_FAILURE"
)

// ErrorCodeHTTPStatus pins the status of codes whose kind alone is not precise enough
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:             http.StatusInternalServerError,
	ErrCodeValidation:           http.StatusBadRequest,
	ErrCodeBadRequest:           http.StatusBadRequest,
	ErrCodeInvalidJSON:          http.StatusBadRequest,
	ErrCodeRequestTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeConfirmationRequired: http.StatusPreconditionRequired,

	"INSUFFICIENT_STOCK":   http.StatusUnprocessableEntity,
	"CONCURRENCY_CONFLICT": http.StatusConflict,
	"ALREADY_APPLIED":      http.StatusConflict,
}

// kindHTTPStatus maps an error kind to its default status
var kindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:     http.StatusBadRequest,
	shared.KindState:          http.StatusUnprocessableEntity,
	shared.KindNotFound:       http.StatusNotFound,
	shared.KindConflict:       http.StatusConflict,
	shared.KindNetwork:        http.StatusServiceUnavailable,
	shared.KindPartialFailure: http.StatusBadGateway,
	shared.KindInternal:       http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for a code and kind.
// Returns 500 Internal Server Error when neither is known.
func GetHTTPStatus(code string, kind shared.ErrorKind) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if status, ok := kindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromError converts err into a status and error body. Errors that are not
// domain errors are reported as internal without leaking their message.
func FromError(err error, requestID string) (int, Response) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError,
			NewErrorResponseWithRequestID(ErrCodeInternal, "An unexpected error occurred", requestID)
	}
	resp := NewErrorResponseWithRequestID(de.Code, de.Message, requestID)
	if len(de.Details) > 0 {
		resp.Error.Details = de.Details
	}
	return GetHTTPStatus(de.Code, de.Kind), resp
}

// NewPartialFailureResponse reports a request that succeeded in part: data
// holds what was applied and the error what still needs follow-up
func NewPartialFailureResponse(data any, err *shared.DomainError, requestID string) Response {
	resp := NewSuccessResponse(data)
	if err != nil {
		resp.Error = &ErrorInfo{
			Code:      err.Code,
			Message:   err.Message,
			RequestID: requestID,
			Details:   err.Details,
		}
	}
	return resp
}
