package api

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StatusError is returned when the API responds with a non-2xx status.
// It is an orchestrator-reported condition, distinct from transport errors
// (network failures), which are returned as wrapped *url.Error values.
type StatusError struct {
	// Code is the HTTP status code
	Code int
	// Message is the server-supplied error message, if any
	Message string
	// Endpoint is the request path that produced the error
	Endpoint string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.Code)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// IsTransport reports whether err is a transport-level failure rather than
// a server-reported status. Circuit-open counts as transport: the API base
// is unreachable as far as callers are concerned.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return false
	}
	return true
}
