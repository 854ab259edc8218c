// Package apierr classifies failures of remote calls into a small closed set
// of kinds so callers can decide between retrying, aborting and degrading.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the category of a remote failure.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	Unauthorized
	Transient
	Malformed
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Unauthorized:
		return "unauthorized"
	case Transient:
		return "transient"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a classified remote failure.
type Error struct {
	Kind   Kind
	Op     string // e.g. "list files", "chat completion"
	Status int    // HTTP status, 0 if the request never got a response
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	sb.WriteString(": ")
	sb.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindForStatus maps an HTTP status code to a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return Unauthorized
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return Transient
	case status >= 500:
		return Transient
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return Malformed
	default:
		return Unknown
	}
}

// FromStatus builds an error for a non-2xx response. body is the (possibly
// truncated) response body and is only used for the message.
func FromStatus(op string, status int, body string) *Error {
	body = strings.TrimSpace(body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	var err error
	if body != "" {
		err = errors.New(body)
	}
	return &Error{Kind: KindForStatus(status), Op: op, Status: status, Err: err}
}

// FromTransport classifies an error returned by an HTTP client before any
// response was read. A canceled context is never retried.
func FromTransport(op string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: Unknown, Op: op, Err: err}
	}
	// Timeouts, resets and refused connections are all worth another try.
	return &Error{Kind: Transient, Op: op, Err: err}
}

// KindOf returns the Kind of err, or Unknown if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
