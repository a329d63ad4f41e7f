// Package errors defines the shared error taxonomy used across the core:
// schema/patch validation, provider SDK failures, and pipeline execution.
// Every error exposed by the core carries a stable Kind so callers can
// classify it without string matching, and every Kind is partitioned into
// exactly one of retryable, terminal, or pipeline-structural.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies one error variant in the core taxonomy. Kind values are
// stable contracts: their String() form is the wire "code".
type Kind string

const (
	// Input/validation kinds.
	KindInvalidPrompt    Kind = "INVALID_PROMPT"
	KindInvalidCondition Kind = "INVALID_CONDITION"
	KindInvalidPipeline  Kind = "INVALID_PIPELINE"
	KindInvalidRequest   Kind = "INVALID_REQUEST"
	KindMissingContext   Kind = "MISSING_CONTEXT"
	KindNodeNotFound     Kind = "NODE_NOT_FOUND"
	KindUnreachableNode  Kind = "UNREACHABLE_NODE"
	KindNoStartNode      Kind = "NO_START_NODE"
	KindNoExitNode       Kind = "NO_EXIT_NODE"
	KindPathNotFound     Kind = "PATH_NOT_FOUND"
	KindTypeMismatch     Kind = "TYPE_MISMATCH"
	// KindOverlap is not named in spec.md's taxonomy table; it resolves the
	// Open Question about overlapping CordOps within one Patch batch (see
	// DESIGN.md): the whole patch is rejected rather than silently dropping
	// the overlapping op.
	KindOverlap Kind = "OVERLAP"

	// Transient kinds.
	KindRateLimited          Kind = "RATE_LIMITED"
	KindNetworkTimeout       Kind = "NETWORK_TIMEOUT"
	KindTemporaryUnavailable Kind = "TEMPORARY_UNAVAILABLE"
	KindIO                   Kind = "IO"

	// Terminal runtime kinds.
	KindAuthenticationFailed Kind = "AUTHENTICATION_FAILED"
	KindHandlerFailed        Kind = "HANDLER_FAILED"
	KindJSON                 Kind = "JSON"
	KindCodecFailed          Kind = "CODEC_FAILED"
	KindCancelled            Kind = "CANCELLED"
	// KindServer is retryable iff the CoreError that carries it sets
	// Retryable=true explicitly (spec §7).
	KindServer Kind = "SERVER"
)

// CoreError is the structured error type returned across core package
// boundaries. It preserves an error chain via Unwrap while serializing as a
// stable {code, message, details} triple (spec §7).
type CoreError struct {
	Kind      Kind
	Message   string
	Details   map[string]any
	retryable bool
	cause     error
}

// New constructs a CoreError of the given kind with a message.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Newf constructs a CoreError with a formatted message.
func Newf(kind Kind, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a CoreError of the given kind wrapping cause.
func Wrap(kind Kind, cause error, message string) *CoreError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &CoreError{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches structured diagnostic details and returns the
// receiver for chaining.
func (e *CoreError) WithDetails(details map[string]any) *CoreError {
	e.Details = details
	return e
}

// WithRetryable overrides the default retryability, used by KindServer to
// record whether the specific server failure is retryable (spec §7).
func (e *CoreError) WithRetryable(retryable bool) *CoreError {
	e.retryable = retryable
	return e
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the wrapped cause, if any, supporting errors.Is/As.
func (e *CoreError) Unwrap() error { return e.cause }

// As reports whether err is (or wraps) a *CoreError and returns it.
func As(err error) (*CoreError, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) a *CoreError, and the
// zero Kind otherwise.
func KindOf(err error) Kind {
	if ce, ok := As(err); ok {
		return ce.Kind
	}
	return ""
}

// IsRetryable reports whether err should drive a stage's retry policy
// (spec §4.3/§7): RateLimited, NetworkTimeout, TemporaryUnavailable, Io, and
// a Server error explicitly marked retryable.
func IsRetryable(err error) bool {
	ce, ok := As(err)
	if !ok {
		return false
	}
	switch ce.Kind {
	case KindRateLimited, KindNetworkTimeout, KindTemporaryUnavailable, KindIO:
		return true
	case KindServer:
		return ce.retryable
	default:
		return false
	}
}

// IsTerminal reports whether err fails the stage outright: InvalidPrompt,
// MissingContext, AuthenticationFailed, HandlerFailed, Json, CodecFailed,
// Cancelled, InvalidRequest, PathNotFound, TypeMismatch, Overlap, and a
// Server error not marked retryable.
func IsTerminal(err error) bool {
	ce, ok := As(err)
	if !ok {
		return false
	}
	switch ce.Kind {
	case KindInvalidPrompt, KindMissingContext, KindAuthenticationFailed,
		KindHandlerFailed, KindJSON, KindCodecFailed, KindCancelled,
		KindInvalidRequest, KindPathNotFound, KindTypeMismatch, KindOverlap:
		return true
	case KindServer:
		return !ce.retryable
	default:
		return false
	}
}

// IsPipeline reports whether err is a structural pipeline-validation error,
// never observed at run-time: NoStartNode, NoExitNode, UnreachableNode,
// InvalidCondition, NodeNotFound, InvalidPipeline.
func IsPipeline(err error) bool {
	ce, ok := As(err)
	if !ok {
		return false
	}
	switch ce.Kind {
	case KindNoStartNode, KindNoExitNode, KindUnreachableNode,
		KindInvalidCondition, KindNodeNotFound, KindInvalidPipeline:
		return true
	default:
		return false
	}
}

// wireError is the stable, user-visible JSON shape for any CoreError.
type wireError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// MarshalJSON implements the user-visible failure contract of spec §7:
// {"code": "SCREAMING_SNAKE", "message": "...", "details": {...}}.
func (e *CoreError) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireError{
		Code:    string(e.Kind),
		Message: e.Message,
		Details: e.Details,
	})
}
