package apperr

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable category of an error.
type Kind string

const (
	KindValidation             Kind = "validation"
	KindCapacityExceeded       Kind = "capacity_exceeded"
	KindDuplicateConstraint    Kind = "duplicate_constraint"
	KindNotFound               Kind = "not_found"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindForbidden              Kind = "forbidden"
	KindPersistence            Kind = "persistence"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation             = &Error{Kind: KindValidation}
	ErrCapacityExceeded       = &Error{Kind: KindCapacityExceeded}
	ErrDuplicateConstraint    = &Error{Kind: KindDuplicateConstraint}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrPersistence            = &Error{Kind: KindPersistence}
)

// Error carries a Kind, a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func CapacityExceeded(format string, args ...any) *Error {
	return newf(KindCapacityExceeded, format, args...)
}

func DuplicateConstraint(format string, args ...any) *Error {
	return newf(KindDuplicateConstraint, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func InvalidStateTransition(format string, args ...any) *Error {
	return newf(KindInvalidStateTransition, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

// Persistence wraps a storage failure. An err that already carries a Kind is
// returned unchanged.
func Persistence(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindPersistence, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindPersistence for untyped errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindPersistence
}

// MessageOf returns the human-readable message of err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}
