package foldcore

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way callers across component boundaries need
// to branch on it (retry vs surface vs degrade), per spec §7.
type Kind string

const (
	InvalidInput Kind = "invalid_input"
	NotFound     Kind = "not_found"
	Conflict     Kind = "conflict"
	Integrity    Kind = "integrity"
	LlmRequest   Kind = "llm_request"
	LlmExhausted Kind = "llm_exhausted"
	Embed        Kind = "embed"
	Vector       Kind = "vector"
	Storage      Kind = "storage"
	Cancelled    Kind = "cancelled"
	Timeout      Kind = "timeout"
)

// Error wraps an underlying error with a Kind so that every layer between
// the collaborator that raised it and the memory service that decides
// whether to swallow it can branch on the same enum, without resorting to
// errors.Is against a long list of sentinel values.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a Kind-tagged error from a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Newf builds a Kind-tagged error from a format string.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags an existing error with a Kind, preserving it for errors.Is/As.
// Wrapping nil returns nil so callers can write `return foldcore.Wrap(Storage, err)`
// unconditionally at the end of a function.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err (or anything it wraps) is a *Error of the given
// Kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err does not wrap a *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
