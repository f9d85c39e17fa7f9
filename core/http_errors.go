package core

import "net/http"

// HTTPError represents an HTTP error with a status code and a stable
// machine-readable code for clients.
type HTTPError struct {
	Status  int    // HTTP status code
	Code    string // stable machine code, e.g. "PLAN_NOT_FOUND"
	Message string // human-readable description
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

var (
	ErrBadRequest          = HTTPError{Status: http.StatusBadRequest, Code: "bad_request"}
	ErrUnauthorized        = HTTPError{Status: http.StatusUnauthorized, Code: "unauthorized"}
	ErrForbidden           = HTTPError{Status: http.StatusForbidden, Code: "forbidden"}
	ErrNotFound            = HTTPError{Status: http.StatusNotFound, Code: "not_found"}
	ErrUnprocessableEntity = HTTPError{Status: http.StatusUnprocessableEntity, Code: "unprocessable_entity"}
	ErrInternalServerError = HTTPError{Status: http.StatusInternalServerError, Code: "internal_server_error"}
)

// NewHTTPError creates an HTTP error with the given status, machine code
// and message.
func NewHTTPError(status int, code, message string) HTTPError {
	return HTTPError{Status: status, Code: code, Message: message}
}
