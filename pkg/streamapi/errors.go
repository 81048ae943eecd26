package streamapi

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for writes issued after a producer has been closed.
var ErrClosed = errors.New("streamapi: producer closed")

// ErrorCode classifies service-side errors.
type ErrorCode string

const (
	ErrorCodeStreamNotFound       ErrorCode = "STREAM_NOT_FOUND"
	ErrorCodeStreamExists         ErrorCode = "STREAM_EXISTS"
	ErrorCodeSubscriptionNotFound ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	ErrorCodeBackpressure         ErrorCode = "BACKPRESSURE"
	ErrorCodeInternal             ErrorCode = "INTERNAL"
)

// APIError is an error reported by the stream service.
type APIError struct {
	Code   ErrorCode
	Msg    string
	Status int
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("stream service: HTTP %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func apiErrorCode(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var ae *APIError
	if !errors.As(err, &ae) {
		return "", false
	}
	return ae.Code, true
}

// IsNotFound reports whether err is a missing stream or subscription.
func IsNotFound(err error) bool {
	code, ok := apiErrorCode(err)
	return ok && (code == ErrorCodeStreamNotFound || code == ErrorCodeSubscriptionNotFound)
}

// IsStreamExists reports whether err is a duplicate stream creation.
func IsStreamExists(err error) bool {
	code, ok := apiErrorCode(err)
	return ok && code == ErrorCodeStreamExists
}

// IsBackpressure reports whether the service rejected a write because it is
// overloaded. Benchmarks count these as failed appends and keep going.
func IsBackpressure(err error) bool {
	code, ok := apiErrorCode(err)
	return ok && code == ErrorCodeBackpressure
}
