package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a provider call failure. The aggregator and metrics
// layers branch on kind, never on the underlying error text.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindRateLimited  Kind = "rate_limited"
	KindUnauthorized Kind = "unauthorized"
	KindMalformed    Kind = "malformed"
	KindUnreachable  Kind = "unreachable"
)

type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http %s: %s %s: status %d", e.Kind, "GET", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("http %s: %s %s: %v", e.Kind, "GET", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind for err, or KindUnreachable when err
// carries no classification.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnreachable
}

func classifyTransport(url string, err error) *Error {
	kind := KindUnreachable
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, URL: url, Err: err}
}

func classifyStatus(url string, status int) *Error {
	kind := KindUnreachable
	switch {
	case status == 429:
		kind = KindRateLimited
	case status == 401 || status == 403:
		kind = KindUnauthorized
	}
	return &Error{Kind: kind, URL: url, StatusCode: status}
}
