package engine

import (
	"errors"
	"fmt"

	"assetline/internal/domain"
	"assetline/internal/repo"
)

// Kind classifies engine failures for callers and transports.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindInvalidState Kind = "invalid_state"
	KindBadRequest   Kind = "bad_request"
)

// Error is returned for every rejected operation. Storage failures are not
// wrapped in Error and stay opaque.
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending input for bad_request errors.
	Field string
	// ID names the missing or conflicting entity.
	ID string
	// Status is the request status observed for invalid_state errors.
	Status domain.Status
	Err    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can use errors.Is(err, engine.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrBadRequest   = &Error{Kind: KindBadRequest}
)

// KindOf returns the Kind of err, or "" for internal errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func notFound(kind, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", kind, id), ID: id, Err: repo.ErrNotFound}
}

func badRequest(field, format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Field: field, Message: fmt.Sprintf(format, args...)}
}

func invalidState(requestID string, status domain.Status, action string) *Error {
	return &Error{
		Kind:    KindInvalidState,
		ID:      requestID,
		Status:  status,
		Message: fmt.Sprintf("request %s is %s; cannot %s", requestID, status, action),
	}
}

func forbidden(err error) *Error {
	return &Error{Kind: KindForbidden, Message: err.Error(), Err: err}
}

// ledgerError maps a ledger conflict to NotFound for vanished items and
// InvalidState for items already flipped.
func ledgerError(requestID string, err error) error {
	var conflict *repo.LedgerConflictError
	if !errors.As(err, &conflict) {
		return err
	}
	if len(conflict.Missing) > 0 {
		return &Error{Kind: KindNotFound, ID: conflict.Missing[0], Message: fmt.Sprintf("request %s: %s", requestID, conflict.Error()), Err: err}
	}
	return &Error{Kind: KindInvalidState, ID: conflict.Flipped[0], Message: fmt.Sprintf("request %s: %s", requestID, conflict.Error()), Err: err}
}
