// Package result carries the outcome of pipeline operations that never
// surface errors to their callers. Each failure is tagged with a Kind so
// tests and telemetry can tell which path was taken.
package result

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation did not complete normally.
type Kind string

const (
	KindNone         Kind = ""
	KindTransport    Kind = "transport"    // network error or non-2xx from a remote service
	KindTimeout      Kind = "timeout"      // hard deadline reached
	KindApplication  Kind = "application"  // remote service answered but declared an error
	KindMalformed    Kind = "malformed"    // unexpected response shape
	KindCircuitOpen  Kind = "circuit_open" // breaker rejected the call
	KindUnconfigured Kind = "unconfigured" // no remote service wired
	KindPersistence  Kind = "persistence"  // storage read or write failed
	KindFiltered     Kind = "filtered"     // every candidate was dropped as low-signal
	KindDisabled     Kind = "disabled"     // capture is switched off for the subject
)

// Result is a value or a classified failure.
type Result[T any] struct {
	Value T
	Kind  Kind
	Err   error
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a classified failure. The value is the zero value of T.
func Fail[T any](kind Kind, err error) Result[T] {
	return Result[T]{Kind: kind, Err: err}
}

// IsOK reports whether the result carries no failure kind.
func (r Result[T]) IsOK() bool {
	return r.Kind == KindNone
}

func (r Result[T]) String() string {
	if r.IsOK() {
		return fmt.Sprintf("ok(%v)", r.Value)
	}
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Kind, r.Err)
	}
	return string(r.Kind)
}

// Error is an error carrying a Kind. Lower layers return it so the layer
// that builds a Result can classify without string matching.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind carried by err, or KindNone when err is nil or
// unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
