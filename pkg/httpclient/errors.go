package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/taiso/routes-service/pkg/resilience"
)

// ErrorKind is the coarse category of an outbound call failure
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimited
	KindClientError
	KindServerError
	KindNetworkError
	KindTimeout
	KindCircuitOpen
	KindDecodeError
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindNetworkError:
		return "network_error"
	case KindTimeout:
		return "timeout"
	case KindCircuitOpen:
		return "circuit_open"
	case KindDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// NetworkError wraps a transport level failure where no response was received
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response body is not the expected JSON
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Classify maps an error returned by Client to its ErrorKind
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return KindCircuitOpen
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized:
			return KindUnauthorized
		case httpErr.StatusCode == http.StatusForbidden:
			return KindForbidden
		case httpErr.StatusCode == http.StatusNotFound:
			return KindNotFound
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return KindRateLimited
		case httpErr.StatusCode == http.StatusRequestTimeout || httpErr.StatusCode == http.StatusGatewayTimeout:
			return KindTimeout
		case httpErr.StatusCode >= 500:
			return KindServerError
		default:
			return KindClientError
		}
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return KindDecodeError
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		var timeoutErr interface{ Timeout() bool }
		if errors.As(netErr.Err, &timeoutErr) && timeoutErr.Timeout() {
			return KindTimeout
		}
		return KindNetworkError
	}

	return KindUnknown
}

// IsRetryable reports whether another attempt could succeed
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return resilience.IsRetryableHTTPStatus(httpErr.StatusCode)
	}

	switch Classify(err) {
	case KindDecodeError, KindCircuitOpen:
		return false
	}
	return true
}

// IsClientFault reports whether the upstream rejected the request itself,
// as opposed to being unavailable.
func IsClientFault(err error) bool {
	switch Classify(err) {
	case KindUnauthorized, KindForbidden, KindNotFound, KindClientError, KindDecodeError:
		return true
	}
	return false
}
