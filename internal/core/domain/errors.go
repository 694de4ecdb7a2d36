package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure kinds an endpoint attempt can produce.
type ErrorKind int

const (
	KindNetwork    ErrorKind = iota // connection or DNS failure
	KindTimeout                     // attempt deadline exceeded
	KindHTTP                        // non-2xx response
	KindValidation                  // reachable, but the payload is malformed
)

// Code returns the errorCode used in ErrorReport for this kind.
func (k ErrorKind) Code() string {
	switch k {
	case KindNetwork:
		return "NETWORK_ERROR"
	case KindTimeout:
		return "TIMEOUT_ERROR"
	case KindHTTP:
		return "HTTP_ERROR"
	case KindValidation:
		return "VALIDATION_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// KindFromCode is the inverse of ErrorKind.Code.
func KindFromCode(code string) (ErrorKind, bool) {
	for _, k := range []ErrorKind{KindNetwork, KindTimeout, KindHTTP, KindValidation} {
		if k.Code() == code {
			return k, true
		}
	}
	return 0, false
}

// FetchError is the typed failure of a single endpoint attempt.
type FetchError struct {
	Kind       ErrorKind
	Endpoint   string
	Reason     string
	StatusCode int // upstream status; zero for skipped requests and non-HTTP kinds
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s error from %s: %s", e.Kind, e.Endpoint, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewNetworkError(endpoint, reason string, err error) *FetchError {
	return &FetchError{Kind: KindNetwork, Endpoint: endpoint, Reason: reason, Err: err}
}

func NewTimeoutError(endpoint, reason string, err error) *FetchError {
	return &FetchError{Kind: KindTimeout, Endpoint: endpoint, Reason: reason, Err: err}
}

func NewHTTPError(endpoint string, status int, reason string) *FetchError {
	return &FetchError{Kind: KindHTTP, Endpoint: endpoint, Reason: reason, StatusCode: status}
}

// NewSkippedError reports a request that was never sent because a local guard held it back.
// It carries no status code since the upstream did not answer.
func NewSkippedError(endpoint, reason string) *FetchError {
	return &FetchError{Kind: KindHTTP, Endpoint: endpoint, Reason: reason}
}

func NewValidationError(endpoint, reason string) *FetchError {
	return &FetchError{Kind: KindValidation, Endpoint: endpoint, Reason: reason}
}

// AsFetchError extracts a *FetchError from err.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
