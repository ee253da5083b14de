package crawlapi

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrBackendUnavailable is returned while the circuit breaker is open.
var ErrBackendUnavailable = errors.New("crawl backend unavailable")

// maxErrorBody bounds the backend body kept in an APIError.
const maxErrorBody = 512

// APIError is returned for any non-2xx backend response.
type APIError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error formats as "failed to <op> (<body>)", or "failed to <op>" when the body is empty.
func (e *APIError) Error() string {
	if e.Body == "" {
		return "failed to " + e.Op
	}
	return fmt.Sprintf("failed to %s (%s)", e.Op, e.Body)
}

// HTTPStatusCode lets retry.IsRetryable classify the error.
func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// NotFound reports whether the backend answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == 404
}

func newAPIError(op, method, path string, status int, body []byte) *APIError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		text = text[:n] + "..."
	}
	return &APIError{Op: op, Method: method, Path: path, StatusCode: status, Body: text}
}

// UpdateError is returned when every options update route failed.
type UpdateError struct {
	ID       string
	Attempts []error
}

func (e *UpdateError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("update options for source %s: all %d routes failed: %s",
		e.ID, len(e.Attempts), strings.Join(msgs, "; "))
}

// Unwrap exposes every attempt to errors.Is and errors.As.
func (e *UpdateError) Unwrap() []error {
	return e.Attempts
}
