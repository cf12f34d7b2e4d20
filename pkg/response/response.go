package response

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// APIResponse is the envelope every endpoint writes. Status is "success" or
// "error"; exactly one of Message and Data is populated.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{Status: "success", Data: data})
}

func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, APIResponse{Status: "error", Message: msg})
}

// ErrorRetryAfter writes an error envelope with a Retry-After hint, for
// transient conditions the caller should back off from.
func ErrorRetryAfter(w http.ResponseWriter, status int, msg string, retryAfterSec int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	Error(w, status, msg)
}
