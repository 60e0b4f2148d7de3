package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies fetch failures.
type ErrorType string

const (
	ErrTimeout                ErrorType = "timeout"
	ErrDNS                    ErrorType = "dns_error"
	ErrConnection             ErrorType = "connection_error"
	ErrSSL                    ErrorType = "ssl_error"
	ErrBlockedByRobots        ErrorType = "blocked_by_robots_txt"
	ErrRateLimited            ErrorType = "rate_limited"
	ErrUnsupportedContentType ErrorType = "unsupported_content_type"
	ErrInvalidURL             ErrorType = "invalid_url"
	ErrHTTP                   ErrorType = "http_error"
	ErrContentTooLarge        ErrorType = "content_too_large"
	ErrBrowser                ErrorType = "browser_error"
)

// Error is the structured error carried in a fetch result.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	HTTPStatus int       `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// newError builds a typed error with the retryability the taxonomy
// assigns to its kind.
func newError(kind ErrorType, message string) *Error {
	return &Error{
		Type:      kind,
		Message:   message,
		Retryable: kind == ErrTimeout || kind == ErrDNS || kind == ErrConnection || kind == ErrRateLimited,
	}
}

// classifyDriverError maps a navigation failure onto the error
// taxonomy. The driver surfaces Chromium network errors as net::ERR_*
// strings in the error message.
func classifyDriverError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrTimeout, "navigation deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return newError(ErrBrowser, "fetch canceled")
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "net::ERR_NAME_NOT_RESOLVED"),
		strings.Contains(msg, "net::ERR_NAME_RESOLUTION_FAILED"),
		strings.Contains(msg, "net::ERR_DNS_"):
		return newError(ErrDNS, msg)
	case strings.Contains(msg, "net::ERR_CONNECTION_"),
		strings.Contains(msg, "net::ERR_SOCKET_"),
		strings.Contains(msg, "net::ERR_ADDRESS_UNREACHABLE"),
		strings.Contains(msg, "net::ERR_NETWORK_CHANGED"):
		return newError(ErrConnection, msg)
	case strings.Contains(msg, "net::ERR_CERT_"),
		strings.Contains(msg, "net::ERR_SSL_"),
		strings.Contains(msg, "net::ERR_BAD_SSL_"):
		return newError(ErrSSL, msg)
	case strings.Contains(msg, "net::ERR_TIMED_OUT"),
		strings.Contains(msg, "net::ERR_CONNECTION_TIMED_OUT"),
		strings.Contains(msg, "deadline exceeded"):
		return newError(ErrTimeout, msg)
	default:
		return newError(ErrBrowser, msg)
	}
}

// classifyStatus maps a non-2xx document status onto the taxonomy, or
// nil when the status is acceptable. Only 429 and the transient gateway
// statuses are retryable.
func classifyStatus(status int) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		e := newError(ErrRateLimited, "upstream returned 429")
		e.HTTPStatus = status
		return e
	case status >= 400:
		retryable := status == http.StatusBadGateway ||
			status == http.StatusServiceUnavailable ||
			status == http.StatusGatewayTimeout
		return &Error{
			Type:       ErrHTTP,
			Message:    fmt.Sprintf("upstream returned HTTP %d", status),
			Retryable:  retryable,
			HTTPStatus: status,
		}
	default:
		return nil
	}
}
