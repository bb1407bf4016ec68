// Package domain – error classification.
//
// Errors are classified by an explicit Kind carried on a structured error
// value rather than by matching substrings of human-readable messages.
// Components wrap failures with the kind that describes them; the transport
// boundary maps kinds to HTTP status codes.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy and transport mapping.
type Kind uint8

const (
	// KindUnknown covers unclassified internal failures.
	KindUnknown Kind = iota
	// KindConfiguration marks a missing credential or bucket/chat binding.
	// Fatal at boot.
	KindConfiguration
	// KindSchema marks a failed table creation or column change during
	// schema healing. Fatal at boot; the process must refuse to serve.
	KindSchema
	// KindValidation marks bad or missing input. Recoverable per request.
	KindValidation
	// KindNotFound marks a missing file, category, or metadata row.
	KindNotFound
	// KindUpstream marks a non-success response from a blob or relay
	// backend.
	KindUpstream
	// KindPersistenceRow marks a single row that failed during a bulk
	// migration. Logged and skipped, never escalated.
	KindPersistenceRow
)

// String returns a stable name for the kind, suitable for logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindSchema:
		return "schema"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindPersistenceRow:
		return "persistence_row"
	default:
		return "unknown"
	}
}

// Error is the structured error type carried between components.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error wrapping an optional cause.
func E(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Ef builds a classified error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, walking the wrap chain.
// Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
