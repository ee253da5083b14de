package probe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL indicates the URL is malformed or not http(s).
	ErrInvalidURL = errors.New("invalid url")

	// ErrPrivateIP indicates the URL resolves to a private or loopback address.
	ErrPrivateIP = errors.New("url resolves to a private address")

	// ErrTooManyRedirects indicates the redirect limit was exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates the response exceeded MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTimeout indicates the probe exceeded its timeout.
	ErrTimeout = errors.New("probe timed out")
)

// StatusError is returned when the seed URL answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("seed url returned HTTP %d", e.Code)
}

// HTTPStatusCode implements retry.StatusCoder.
func (e *StatusError) HTTPStatusCode() int {
	return e.Code
}
