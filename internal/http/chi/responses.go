package chi

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the body of every non-2xx answer; it never carries internal detail
type errorResponse struct {
	Status    string `json:"status"`
	Code      int    `json:"code"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Retryable *bool  `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, errorResponse{
		Status:  "error",
		Code:    status,
		Reason:  reason,
		Message: message,
	})
}

func writeRetryable(w http.ResponseWriter, status int, reason, message string, retryable bool) {
	writeJSON(w, status, errorResponse{
		Status:    "error",
		Code:      status,
		Reason:    reason,
		Message:   message,
		Retryable: &retryable,
	})
}
