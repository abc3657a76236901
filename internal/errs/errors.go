// Package errs is the error taxonomy shared by the snapshot drivers, the
// bundle writer, the publisher and the web server.
//
// Backends translate their native errors into an *Error with a Kind. The
// analysis run then decides by kind alone: Aborts reports the environment
// failures that end a run, everything else degrades one report section.
//
//	if err := src.Fetch(ctx, q); errs.Aborts(err) {
//		return err
//	}
package errs

import (
	"context"
	"errors"
	"fmt"
)

// ErrKind classifies an error independently of the backend that raised it.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // missing table, row, object or file
	ErrKindConnectionFailed         // backend unreachable or rejected credentials
	ErrKindTimeout                  // deadline exceeded or context canceled
	ErrKindQueryFailed              // the backend ran the statement and refused it
	ErrKindInvalidInput             // caller or configuration error
	ErrKindPermissionDenied
	ErrKindIO // local filesystem
)

var kindNames = map[ErrKind]string{
	ErrKindNotFound:         "not_found",
	ErrKindConnectionFailed: "connection_failed",
	ErrKindTimeout:          "timeout",
	ErrKindQueryFailed:      "query_failed",
	ErrKindInvalidInput:     "invalid_input",
	ErrKindPermissionDenied: "permission_denied",
	ErrKindIO:               "io",
}

func (k ErrKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error carries a kind, a human message and optionally the backend error.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Wrapf(kind ErrKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// Message returns the message of the first *Error in err's chain without
// kind or cause, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Interrupted reports whether err stems from context cancellation or an
// expired deadline. Drivers use it to map such errors to ErrKindTimeout.
func Interrupted(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// Aborts reports whether err means the snapshot or storage is gone, so
// carrying on would only produce more of the same failure.
func Aborts(err error) bool {
	switch KindOf(err) {
	case ErrKindConnectionFailed, ErrKindTimeout:
		return true
	}
	return false
}

func IsNotFound(err error) bool         { return KindOf(err) == ErrKindNotFound }
func IsTimeout(err error) bool          { return KindOf(err) == ErrKindTimeout }
func IsConnectionFailed(err error) bool { return KindOf(err) == ErrKindConnectionFailed }
func IsQueryFailed(err error) bool      { return KindOf(err) == ErrKindQueryFailed }
func IsInvalidInput(err error) bool     { return KindOf(err) == ErrKindInvalidInput }
func IsPermissionDenied(err error) bool { return KindOf(err) == ErrKindPermissionDenied }
func IsIO(err error) bool               { return KindOf(err) == ErrKindIO }
