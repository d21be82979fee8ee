package apperr

import (
	"errors"
	"sort"
	"strings"
)

// Kind is the closed set of error categories surfaced to API clients.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindInvalidState Kind = "invalid_state"
	KindPermission   Kind = "permission"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal"
)

// Kinds lists every Kind in a stable order.
var Kinds = []Kind{
	KindValidation,
	KindInvalidState,
	KindPermission,
	KindUnauthorized,
	KindNotFound,
	KindConflict,
	KindRateLimited,
	KindInternal,
}

// ParseKind maps a wire value back to a Kind. Unknown values become KindInternal.
func ParseKind(value string) Kind {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, k := range Kinds {
		if k == normalized {
			return k
		}
	}
	return KindInternal
}

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error is the domain error type carried from services to the transport layer.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldIssue
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validation builds a validation error with per-field reasons, sorted by field.
func Validation(message string, fields ...FieldIssue) *Error {
	out := make([]FieldIssue, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return &Error{Kind: KindValidation, Message: message, Fields: out}
}

// KindOf returns the Kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
