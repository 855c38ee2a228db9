package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pacetrack/gateway/internal/errors"
)

// errorResponse is the caller-visible failure shape: a stable code plus a
// human-readable message. Internal details (wrapped causes, upstream bodies)
// are never rendered.
type errorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as a taxonomy error response. Unrecognized errors
// become INTERNAL_ERROR without leaking their content.
func WriteError(w http.ResponseWriter, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("Unexpected gateway error", err)
	}

	if se.Code == errors.CodeRateLimited {
		if retryAfter, ok := se.Details["retry_after"].(int64); ok {
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}

	WriteJSON(w, se.HTTPStatus, errorResponse{
		Code:    string(se.Code),
		Message: se.Message,
		Details: se.Details,
	})
}
