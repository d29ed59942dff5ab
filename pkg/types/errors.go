package types

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the taxonomy of failures the core can surface. Every
// error the core returns to a caller carries one of these kinds plus the
// affected identifiers, never a bare string.
type ErrorKind string

const (
	ErrSchemaNotFound     ErrorKind = "schema_not_found"
	ErrSchemaNotApproved  ErrorKind = "schema_not_approved"
	ErrSchemaInvalid      ErrorKind = "schema_invalid"
	ErrInvalidTransition  ErrorKind = "invalid_transition"
	ErrUnknownField       ErrorKind = "unknown_field"
	ErrPermissionDenied   ErrorKind = "permission_denied"
	ErrUnknownAtom        ErrorKind = "unknown_atom"
	ErrUnknownRef         ErrorKind = "unknown_ref"
	ErrDanglingRef        ErrorKind = "dangling_ref"
	ErrStorageUnavailable ErrorKind = "storage_unavailable"
	ErrInvalidContent     ErrorKind = "invalid_content"
	ErrFilterRequired     ErrorKind = "filter_required"
)

// Error is the single error type the core returns. It always carries a
// Kind and, where applicable, the schema/field/ref identifiers involved so
// callers can render a precise diagnostic without parsing message text.
type Error struct {
	Kind    ErrorKind
	Schema  string
	Field   string
	RefID   string
	AtomID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	loc := ""
	switch {
	case e.Field != "" && e.Schema != "":
		loc = fmt.Sprintf(" (schema=%s field=%s)", e.Schema, e.Field)
	case e.Schema != "":
		loc = fmt.Sprintf(" (schema=%s)", e.Schema)
	case e.RefID != "":
		loc = fmt.Sprintf(" (ref=%s)", e.RefID)
	case e.AtomID != "":
		loc = fmt.Sprintf(" (atom=%s)", e.AtomID)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s%s", e.Kind, loc)
	}
	return fmt.Sprintf("%s: %s%s", e.Kind, e.Message, loc)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is enables errors.Is(err, types.ErrSomeKind.Sentinel())-style comparisons
// by letting a kind's sentinel match any *Error of that kind.
func (e *Error) Is(target error) bool {
	if k, ok := target.(errKindSentinel); ok {
		return e.Kind == ErrorKind(k)
	}
	return false
}

type errKindSentinel ErrorKind

func (k errKindSentinel) Error() string { return string(k) }

// Sentinel returns a comparable value usable with errors.Is to test only
// the kind of an error, ignoring its identifiers and message.
func (k ErrorKind) Sentinel() error { return errKindSentinel(k) }

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (k ErrorKind) WithSchema(schema, message string) *Error {
	return &Error{Kind: k, Schema: schema, Message: message}
}

func (k ErrorKind) WithField(schema, field, message string) *Error {
	return &Error{Kind: k, Schema: schema, Field: field, Message: message}
}

func (k ErrorKind) WithRef(refID, message string) *Error {
	return &Error{Kind: k, RefID: refID, Message: message}
}

func (k ErrorKind) WithAtom(atomID, message string) *Error {
	return &Error{Kind: k, AtomID: atomID, Message: message}
}

func (k ErrorKind) Wrap(cause error, message string) *Error {
	return &Error{Kind: k, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind of err if it is (or wraps) a *Error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
