// Package errs provides the unified error type used across d1meta.
//
// Every subsystem (executor drivers, catalog, filestore, server) wraps its
// native errors into *errs.Error before returning them. Errors raised by an
// executor are transport failures (connection, timeout, permission, remote
// SQL error); the catalog wraps those again as query failures that carry the
// operation and table name.
//
// Usage:
//
//	// In the catalog, wrap the executor error:
//	return errs.Query("table_info", table, err)
//
//	// In a handler, check the error kind anywhere in the chain:
//	if errs.IsTimeout(err) {
//	    http.Error(w, "upstream timed out", http.StatusGatewayTimeout)
//	}
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKind categorises an error without exposing transport-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all d1meta subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Op      string // reflection operation, e.g. "table_info"
	Table   string // table in context, empty for catalog-wide calls
	Cause   error  // original lower-level error, preserved for logging
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Kind.String())
	b.WriteString("] ")
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Table != "" {
			fmt.Fprintf(&b, " %q", e.Table)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Query builds the QueryFailure raised when an introspection call fails.
func Query(op, table string, cause error) *Error {
	return &Error{Kind: ErrKindQueryFailed, Message: "introspection query failed", Op: op, Table: table, Cause: cause}
}

// InvalidInput builds an InvalidInput error scoped to an operation and table.
func InvalidInput(op, table, msg string) *Error {
	return &Error{Kind: ErrKindInvalidInput, Message: msg, Op: op, Table: table}
}

// --- Predicates ---
//
// Predicates match any *Error in the chain, so a query failure that wraps a
// transport timeout reports true for both IsQueryFailed and IsTimeout.

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return hasKind(err, ErrKindNotFound)
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return hasKind(err, ErrKindTimeout)
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return hasKind(err, ErrKindConnectionFailed)
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return hasKind(err, ErrKindQueryFailed)
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return hasKind(err, ErrKindInvalidInput)
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return hasKind(err, ErrKindPermissionDenied)
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

func hasKind(err error, kind ErrKind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}
