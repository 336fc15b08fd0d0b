package handlers

import (
	"encoding/json"
	"net/http"
)

// apiError is the envelope every failing endpoint returns: a stable code
// for callers to branch on and a human-readable message.
type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse writes the JSON error envelope and returns any encoding
// error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, apiError{Code: errorCode, Message: message})
}

// WriteJSON writes data as a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}
