// Package errors defines the gateway error taxonomy.
//
// Adapters normalize transport failures into ServiceError values at the
// boundary; nothing above the adapter layer inspects raw transport error
// internals or upstream response bodies.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, caller-visible error identifier.
type ErrorCode string

const (
	// CodeMissingCredential indicates the request carried no token header.
	CodeMissingCredential ErrorCode = "MISSING_CREDENTIAL"

	// CodeInvalidCredential indicates the identity service rejected the token.
	CodeInvalidCredential ErrorCode = "INVALID_CREDENTIAL"

	// CodeAuthServiceUnavailable indicates the identity service itself failed.
	// Unlike CodeInvalidCredential this is not the caller's fault and is
	// safe for the caller to retry.
	CodeAuthServiceUnavailable ErrorCode = "AUTH_SERVICE_UNAVAILABLE"

	// CodeRateLimited indicates the admission controller denied the request.
	CodeRateLimited ErrorCode = "RATE_LIMITED"

	// CodeTrainingWriteFailed indicates the primary training write failed.
	// Nothing was committed; the whole submission is safe to retry.
	CodeTrainingWriteFailed ErrorCode = "TRAINING_WRITE_FAILED"

	// CodeStatsUpdateFailed indicates the training record was persisted but
	// the follow-up stats update did not complete. The error carries the
	// assigned training id; a retry must target only the stats step.
	CodeStatsUpdateFailed ErrorCode = "STATS_UPDATE_FAILED"

	// CodeUpstreamUnavailable is the generic transport failure for any
	// backend call not covered by a more specific code.
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"

	// CodeBadRequest indicates a malformed inbound request.
	CodeBadRequest ErrorCode = "BAD_REQUEST"

	// CodeUpstreamRejected carries a backend's own 4xx rejection through to
	// the caller with the backend's status preserved.
	CodeUpstreamRejected ErrorCode = "UPSTREAM_REJECTED"

	// CodeInternal is the fallback for unexpected gateway failures.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is the error type exchanged between gateway layers and
// rendered to callers. Details never include raw upstream bodies or stack
// traces.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair to the error and returns it.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a ServiceError with an explicit code, message and status.
func New(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// MissingCredential reports an absent token header.
func MissingCredential() *ServiceError {
	return New(CodeMissingCredential, "No token provided", http.StatusUnauthorized)
}

// InvalidCredential reports a token the identity service did not verify.
func InvalidCredential() *ServiceError {
	return New(CodeInvalidCredential, "Invalid token", http.StatusUnauthorized)
}

// AuthServiceUnavailable reports an identity-service failure during token
// validation.
func AuthServiceUnavailable(err error) *ServiceError {
	e := New(CodeAuthServiceUnavailable, "Token verification is temporarily unavailable", http.StatusServiceUnavailable)
	e.Err = err
	return e
}

// RateLimited reports an admission-control denial. retryAfter is the time
// until the current window resets, in seconds.
func RateLimited(message string, retryAfter int64) *ServiceError {
	if message == "" {
		message = "Too many requests"
	}
	return New(CodeRateLimited, message, http.StatusTooManyRequests).
		WithDetails("retry_after", retryAfter)
}

// TrainingWriteFailed reports a failed primary training write.
func TrainingWriteFailed(err error) *ServiceError {
	e := New(CodeTrainingWriteFailed, "Training could not be saved", http.StatusBadGateway)
	e.Err = err
	return e
}

// StatsUpdateFailed reports a committed training whose stats update did not
// complete. trainingID identifies the already-persisted record so a retry
// can target the stats step alone.
func StatsUpdateFailed(trainingID int64, err error) *ServiceError {
	e := New(CodeStatsUpdateFailed, "Training was saved but stats were not updated", http.StatusBadGateway)
	e.Err = err
	return e.WithDetails("training_id", trainingID)
}

// UpstreamUnavailable reports a generic backend transport failure.
func UpstreamUnavailable(backend string, err error) *ServiceError {
	e := New(CodeUpstreamUnavailable, "Upstream service is unavailable", http.StatusBadGateway)
	e.Err = err
	return e.WithDetails("backend", backend)
}

// UpstreamRejected carries a backend 4xx through with its original status.
// message, when non-empty, is the backend's own human-readable reason.
func UpstreamRejected(backend string, status int, message string) *ServiceError {
	if message == "" {
		message = "Upstream service rejected the request"
	}
	return New(CodeUpstreamRejected, message, status).
		WithDetails("backend", backend)
}

// BadRequest reports a malformed inbound request.
func BadRequest(message string) *ServiceError {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

// Internal reports an unexpected gateway failure.
func Internal(message string, err error) *ServiceError {
	e := New(CodeInternal, message, http.StatusInternalServerError)
	e.Err = err
	return e
}

// GetServiceError returns err as a *ServiceError if it is one anywhere in
// its chain, or nil otherwise.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
