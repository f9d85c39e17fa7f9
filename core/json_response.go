package core

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONResponse is the standard JSON response envelope.
type JSONResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail carries the error code and message to the client.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteJSON renders a successful JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, JSONResponse{Success: true, Data: data})
}

// WriteJSONMessage renders a successful JSON response with a message.
func WriteJSONMessage(w http.ResponseWriter, status int, data any, message string) {
	writeEnvelope(w, status, JSONResponse{Success: true, Data: data, Message: message})
}

// WriteJSONMeta renders a successful JSON response with metadata, used
// for paginated listings.
func WriteJSONMeta(w http.ResponseWriter, status int, data any, meta map[string]any) {
	writeEnvelope(w, status, JSONResponse{Success: true, Data: data, Meta: meta})
}

// WriteJSONError renders an error response. HTTPError values keep their
// status and machine code; anything else becomes a 500 without leaking
// internals to the client.
func WriteJSONError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := &ErrorDetail{
		Code:    ErrInternalServerError.Code,
		Message: http.StatusText(http.StatusInternalServerError),
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Status
		detail.Code = httpErr.Code
		detail.Message = httpErr.Error()
	}

	writeEnvelope(w, status, JSONResponse{Success: false, Error: detail})
}

func writeEnvelope(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
