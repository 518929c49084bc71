package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vango-dev/cells/pkg/cell"
)

// HTTPError is an error with an HTTP status code. Handlers return it to
// control the response; any other error is reported as 500.
type HTTPError struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (not exposed to clients)
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int {
	return e.Code
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(err error) *HTTPError {
	msg := "bad request"
	if err != nil {
		msg = err.Error()
	}
	return &HTTPError{Code: http.StatusBadRequest, Message: msg, Err: err}
}

// BadRequestf creates a 400 Bad Request error with a formatted message.
func BadRequestf(format string, args ...any) *HTTPError {
	return &HTTPError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a 404 Not Found error.
func NotFound(message ...string) *HTTPError {
	msg := "not found"
	if len(message) > 0 {
		msg = message[0]
	}
	return &HTTPError{Code: http.StatusNotFound, Message: msg}
}

// Conflict creates a 409 Conflict error.
func Conflict(message ...string) *HTTPError {
	msg := "conflict"
	if len(message) > 0 {
		msg = message[0]
	}
	return &HTTPError{Code: http.StatusConflict, Message: msg}
}

// UnprocessableEntity creates a 422 Unprocessable Entity error.
func UnprocessableEntity(message ...string) *HTTPError {
	msg := "unprocessable entity"
	if len(message) > 0 {
		msg = message[0]
	}
	return &HTTPError{Code: http.StatusUnprocessableEntity, Message: msg}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(err error) *HTTPError {
	return &HTTPError{Code: http.StatusInternalServerError, Message: "internal server error", Err: err}
}

// fromCell maps an error returned by cell.Catch to an HTTPError.
func fromCell(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var panicErr *cell.PanicError
	switch {
	case errors.Is(err, cell.ErrUnknownCell):
		return &HTTPError{Code: http.StatusNotFound, Message: "unknown cell", Err: err}
	case errors.Is(err, cell.ErrTypeMismatch):
		return &HTTPError{Code: http.StatusBadRequest, Message: "type mismatch", Err: err}
	case errors.Is(err, cell.ErrIndexOutOfRange):
		return &HTTPError{Code: http.StatusBadRequest, Message: "index out of range", Err: err}
	case errors.Is(err, cell.ErrDepthExceeded):
		return &HTTPError{Code: http.StatusConflict, Message: "propagation depth exceeded", Err: err}
	case errors.As(err, &panicErr):
		return &HTTPError{Code: http.StatusUnprocessableEntity, Message: "formula failed", Err: err}
	}
	return InternalError(err)
}

// errorBody is the JSON shape of error responses.
type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// writeError writes err as a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := fromCell(err)
	body := errorBody{Error: httpErr.Message, Status: httpErr.Code}

	if httpErr.Code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	} else if httpErr.Err != nil {
		body.Detail = httpErr.Err.Error()
	}
	writeJSON(w, httpErr.Code, body)
}

// writeJSON writes v with the given status. Cell values are arbitrary, so
// the body is encoded before the header is sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{
			Error:  "value is not representable as JSON",
			Status: status,
			Detail: err.Error(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
