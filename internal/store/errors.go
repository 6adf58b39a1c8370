package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies transfer failures so callers can decide between
// retrying, skipping and aborting without inspecting backend SDK errors.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindNotFound
	KindForbidden
	KindTransient
	KindTransientExhausted
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindTransient:
		return "transient"
	case KindTransientExhausted:
		return "transient_exhausted"
	case KindTimeout:
		return "timeout"
	default:
		return "unexpected"
	}
}

// Error is the typed failure surfaced by store backends and the
// transfer engine. Err holds the underlying cause, if any.
type Error struct {
	Kind     ErrorKind
	ObjectID string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.ObjectID, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.ObjectID, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a classification for the given operation.
func NewError(kind ErrorKind, op, objectID string, err error) *Error {
	return &Error{Kind: kind, Op: op, ObjectID: objectID, Err: err}
}

// KindOf extracts the classification from err, defaulting to unexpected.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnexpected
}

// Retryable reports whether err represents a failure worth another
// attempt: server errors, throttling, request timeouts.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindTimeout:
		return true
	default:
		return false
	}
}

// ClassifyStatus maps an HTTP status code to an error kind. Both the
// Drive and S3 backends report failures with HTTP semantics.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return KindForbidden
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return KindTransient
	case status >= 500:
		return KindTransient
	default:
		return KindUnexpected
	}
}
