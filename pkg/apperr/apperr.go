// Package apperr defines the error kinds shared by the retrieval, ingestion and chat layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to abort, degrade or report.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindMalformedResponse  Kind = "malformed_response"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
)

// Sentinels for errors.Is checks.
var (
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrBackendUnavailable = &Error{Kind: KindBackendUnavailable}
	ErrMalformedResponse  = &Error{Kind: KindMalformedResponse}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind. A malformed response also counts as an unavailable backend.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindMalformedResponse && t.Kind == KindBackendUnavailable
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Configuration(op string, format string, args ...any) error {
	return New(KindConfiguration, op, fmt.Errorf(format, args...))
}

func BackendUnavailable(op string, err error) error {
	return New(KindBackendUnavailable, op, err)
}

func Malformed(op string, format string, args ...any) error {
	return New(KindMalformedResponse, op, fmt.Errorf(format, args...))
}

func NotFound(op string, format string, args ...any) error {
	return New(KindNotFound, op, fmt.Errorf(format, args...))
}

func InvalidInput(op string, format string, args ...any) error {
	return New(KindInvalidInput, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in the chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
