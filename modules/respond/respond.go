// Package respond writes the API's JSON envelope. Every response carries a
// success flag; payloads ride under "data", human-readable confirmations
// under "message", failures under "error".
package respond

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func write(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// Data sends a successful payload response.
func Data(w http.ResponseWriter, status int, data any) {
	write(w, status, envelope{Success: true, Data: data})
}

// Message sends a successful response without a payload.
func Message(w http.ResponseWriter, status int, msg string) {
	write(w, status, envelope{Success: true, Message: msg})
}

// Error sends a failure response. The message must be safe to show to the
// client; internal errors are logged upstream and mapped to generic text.
func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, envelope{Success: false, Error: msg})
}
