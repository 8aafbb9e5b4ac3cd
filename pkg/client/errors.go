package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents requests that never got a response.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassServer represents non-2xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassParse represents responses that could not be interpreted
	// (missing or invalid X-Total-Count, undecodable body).
	ErrorClassParse ErrorClass = "parse"
)

// Common errors returned by the client.
var (
	// ErrInvalidArgument is returned before any request is sent.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNetwork matches every RequestError of class network.
	ErrNetwork = errors.New("network error")

	// ErrServer matches every RequestError of class server.
	ErrServer = errors.New("server error")

	// ErrParse matches every RequestError of class parse.
	ErrParse = errors.New("parse error")

	// ErrRetryExhausted is returned by Retry when all attempts failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// RequestError is the error returned for every failed request.
type RequestError struct {
	// StatusCode is 0 for network errors.
	StatusCode int
	Class      ErrorClass
	Method     string
	Endpoint   string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: %s error", e.Method, e.Endpoint, e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches the class sentinels, so errors.Is(err, ErrParse) works on any
// wrapped RequestError.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Class == ErrorClassNetwork
	case ErrServer:
		return e.Class == ErrorClassServer
	case ErrParse:
		return e.Class == ErrorClassParse
	default:
		return false
	}
}

// Retryable reports whether repeating the request could succeed: network
// failures and 5xx responses. Client errors and parse errors are final.
func Retryable(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	switch reqErr.Class {
	case ErrorClassNetwork:
		return true
	case ErrorClassServer:
		return reqErr.StatusCode >= 500
	default:
		return false
	}
}
