package client

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies which failure path produced an Error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindHTTP
	KindInvalidResponse
	KindNetwork
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindHTTP:
		return "http"
	case KindInvalidResponse:
		return "invalid_response"
	case KindNetwork:
		return "network"
	case KindUnexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// NetworkErrorCode is the machine-readable code carried by network failures.
const NetworkErrorCode = "NETWORK_ERROR"

const (
	msgInvalidResponse = "Invalid response from server"
	msgNetwork         = "Network error: Unable to connect to backend"
	msgUnexpected      = "Network error occurred"
)

// Error is implemented by every failure returned from the client.
// Status is 0 for failures where no HTTP response was received.
type Error interface {
	error
	Kind() Kind
	Status() int
}

// ValidationError is a local input check that failed before any request was sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Kind() Kind    { return KindValidation }
func (e *ValidationError) Status() int   { return 400 }

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string { return e.Message }
func (e *HTTPError) Kind() Kind    { return KindHTTP }
func (e *HTTPError) Status() int   { return e.StatusCode }

// InvalidResponseError is a 2xx response whose JSON body is null.
type InvalidResponseError struct {
	StatusCode int
}

func (e *InvalidResponseError) Error() string { return msgInvalidResponse }
func (e *InvalidResponseError) Kind() Kind    { return KindInvalidResponse }
func (e *InvalidResponseError) Status() int   { return e.StatusCode }

// NetworkError means the request never reached the backend or never returned.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return msgNetwork }
func (e *NetworkError) Kind() Kind    { return KindNetwork }
func (e *NetworkError) Status() int   { return 0 }
func (e *NetworkError) Unwrap() error { return e.Err }

// Code returns NetworkErrorCode.
func (e *NetworkError) Code() string { return NetworkErrorCode }

// UnexpectedError is any other failure during a request, such as an unparseable body.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return msgUnexpected
	}
	return e.Err.Error()
}
func (e *UnexpectedError) Kind() Kind    { return KindUnexpected }
func (e *UnexpectedError) Status() int   { return 0 }
func (e *UnexpectedError) Unwrap() error { return e.Err }

// classifyTransport maps an error returned by the HTTP transport onto the error family.
func classifyTransport(err error) Error {
	if errors.Is(err, context.Canceled) {
		return &UnexpectedError{Err: err}
	}
	return &NetworkError{Err: err}
}

// KindOf returns the Kind of a client error, or 0 if err is not one.
func KindOf(err error) Kind {
	var ce Error
	if errors.As(err, &ce) {
		return ce.Kind()
	}
	return 0
}

// StatusOf returns the status carried by a client error, or 0 if err is not one.
func StatusOf(err error) int {
	var ce Error
	if errors.As(err, &ce) {
		return ce.Status()
	}
	return 0
}

// IsNetwork reports whether err is a connectivity failure.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}
