package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")

	tests := []struct {
		name       string
		err        *ServiceError
		wantCode   ErrorCode
		wantStatus int
	}{
		{"missing credential", MissingCredential(), CodeMissingCredential, http.StatusUnauthorized},
		{"invalid credential", InvalidCredential(), CodeInvalidCredential, http.StatusUnauthorized},
		{"auth service unavailable", AuthServiceUnavailable(cause), CodeAuthServiceUnavailable, http.StatusServiceUnavailable},
		{"rate limited", RateLimited("slow down", 30), CodeRateLimited, http.StatusTooManyRequests},
		{"training write failed", TrainingWriteFailed(cause), CodeTrainingWriteFailed, http.StatusBadGateway},
		{"stats update failed", StatsUpdateFailed(7, cause), CodeStatsUpdateFailed, http.StatusBadGateway},
		{"upstream unavailable", UpstreamUnavailable("training", cause), CodeUpstreamUnavailable, http.StatusBadGateway},
		{"upstream rejected", UpstreamRejected("identity", http.StatusConflict, "taken"), CodeUpstreamRejected, http.StatusConflict},
		{"bad request", BadRequest("no body"), CodeBadRequest, http.StatusBadRequest},
		{"internal", Internal("boom", cause), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestRateLimited_Details(t *testing.T) {
	err := RateLimited("", 42)

	if err.Message != "Too many requests" {
		t.Errorf("Message = %q, want default", err.Message)
	}
	if got := err.Details["retry_after"]; got != int64(42) {
		t.Errorf("retry_after = %v, want int64(42)", got)
	}
}

func TestStatsUpdateFailed_CarriesTrainingID(t *testing.T) {
	err := StatsUpdateFailed(123, fmt.Errorf("push failed"))

	if got := err.Details["training_id"]; got != int64(123) {
		t.Errorf("training_id = %v, want int64(123)", got)
	}
}

func TestGetServiceError(t *testing.T) {
	inner := TrainingWriteFailed(fmt.Errorf("boom"))
	wrapped := fmt.Errorf("submit: %w", inner)

	if got := GetServiceError(wrapped); got != inner {
		t.Errorf("GetServiceError() = %v, want the wrapped *ServiceError", got)
	}
	if got := GetServiceError(fmt.Errorf("plain")); got != nil {
		t.Errorf("GetServiceError(plain) = %v, want nil", got)
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", InvalidCredential())

	if !IsCode(err, CodeInvalidCredential) {
		t.Error("IsCode() = false for a wrapped INVALID_CREDENTIAL")
	}
	if IsCode(err, CodeMissingCredential) {
		t.Error("IsCode() matched the wrong code")
	}
	if IsCode(nil, CodeInternal) {
		t.Error("IsCode(nil) = true")
	}
}

func TestServiceError_ErrorString(t *testing.T) {
	err := UpstreamUnavailable("training", fmt.Errorf("timeout"))

	want := "UPSTREAM_UNAVAILABLE: Upstream service is unavailable: timeout"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
