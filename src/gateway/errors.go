package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorKind classifies an exchange failure for the dispatcher's retry
// decision. Only Transient and RateLimit are retryable.
type ErrorKind int

const (
	KindTransient ErrorKind = iota + 1
	KindRateLimit
	KindAuth
	KindInsufficientFunds
	KindInvalidOrder
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "auth"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindInvalidOrder:
		return "invalid_order"
	}
	return "unknown"
}

// Error is the single error type gateways return. Detail must be safe
// to persist and show to users: exchange codes and messages, never key
// material.
type Error struct {
	Kind     ErrorKind
	Exchange string
	Op       string
	Detail   string

	// RetryAfter is the exchange-provided backoff hint, zero when the
	// exchange gave none.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %s", e.Exchange, e.Op, e.Kind, e.Detail)
}

// Retryable reports whether the dispatcher may attempt the call again.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimit
}

// AsError unwraps a gateway classification from any error chain.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

func newError(kind ErrorKind, exchange, op, detail string) *Error {
	return &Error{Kind: kind, Exchange: exchange, Op: op, Detail: detail}
}

// NewInsufficientFunds classifies a shortfall detected before any
// exchange call, such as a balance that resolves to a zero order size.
func NewInsufficientFunds(exchange, detail string) *Error {
	return newError(KindInsufficientFunds, exchange, "plan_order", detail)
}

// classifyTransportErr maps plain transport failures (no exchange
// response at all) onto the taxonomy.
func classifyTransportErr(exchange, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindTransient, exchange, op, "request aborted: "+err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTransient, exchange, op, "network timeout")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "timeout"):
		return newError(KindTransient, exchange, op, "network error: "+err.Error())
	}

	return newError(KindTransient, exchange, op, err.Error())
}
