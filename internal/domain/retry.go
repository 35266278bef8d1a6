package domain

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

const (
	MaxParseAttempts    = 3
	MaxDownloadAttempts = 3

	backoffStep = 300 * time.Millisecond
)

// NetErrorKind classifies a transport-level failure
type NetErrorKind string

const (
	NetErrorNone           NetErrorKind = ""
	NetErrorTimeout        NetErrorKind = "timeout"
	NetErrorConnectionLost NetErrorKind = "connection_lost"
	NetErrorNotConnected   NetErrorKind = "not_connected"
	NetErrorDNS            NetErrorKind = "dns_failure"
	NetErrorCannotConnect  NetErrorKind = "cannot_connect"
	NetErrorCancelled      NetErrorKind = "cancelled"
	NetErrorOther          NetErrorKind = "other"
)

// ShouldRetryStatus reports whether an HTTP status is worth retrying
func ShouldRetryStatus(code int) bool {
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

// ShouldRetryErrorKind reports whether a transport failure kind is transient
func ShouldRetryErrorKind(kind NetErrorKind) bool {
	switch kind {
	case NetErrorTimeout, NetErrorConnectionLost, NetErrorNotConnected, NetErrorDNS, NetErrorCannotConnect:
		return true
	default:
		return false
	}
}

// ShouldRetryError reports whether a transport error is transient
func ShouldRetryError(err error) bool {
	return ShouldRetryErrorKind(ClassifyNetError(err))
}

// ClassifyNetError maps a Go transport error onto a NetErrorKind.
// Order matters: cancellation wins over everything, DNS before generic timeouts.
func ClassifyNetError(err error) NetErrorKind {
	if err == nil {
		return NetErrorNone
	}
	if errors.Is(err, context.Canceled) {
		return NetErrorCancelled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NetErrorDNS
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EHOSTUNREACH):
		return NetErrorCannotConnect
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.ENETDOWN):
		return NetErrorNotConnected
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return NetErrorConnectionLost
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NetErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NetErrorTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return NetErrorCannotConnect
	}
	return NetErrorOther
}

// Backoff returns the delay before retrying after the given attempt.
// Attempts below 1 are treated as 1.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * backoffStep
}

// IsTransient reports whether a pipeline error may succeed on retry.
// Structured server messages and schema failures are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	extractErr, ok := AsExtractError(err)
	if !ok {
		return ShouldRetryError(err)
	}
	switch extractErr.Kind {
	case KindServerStatus:
		return ShouldRetryStatus(extractErr.StatusCode)
	case KindNetwork:
		return ShouldRetryError(extractErr.Cause)
	default:
		return false
	}
}
