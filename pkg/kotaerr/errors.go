// Package kotaerr defines the closed error taxonomy shared by storage,
// both indices, the wrapper stack, and the coordinator. Every error
// surfaced across a Storage or Index boundary carries a Kind, so callers
// dispatch on structure (errors.As) instead of matching message text.
package kotaerr

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error categories. The set must not grow without
// updating every switch that dispatches on it (Retryable wrapper,
// coordinator, health reporting).
type Kind int

const (
	// InvalidInput means a constructor or validation check rejected the
	// input. Never retried.
	InvalidInput Kind = iota
	// NotFound means the requested id/path has no live entry. delete
	// treats this as success.
	NotFound
	// DuplicateId means insert was called with an id already present.
	DuplicateId
	// IOTransient means an I/O failure that retrying may resolve (a
	// locked file, a momentary ENOSPC on a network filesystem).
	IOTransient
	// IOPermanent means an I/O failure that retrying will not resolve.
	// The database should fall back to read-only behavior.
	IOPermanent
	// Corruption means an on-disk artifact failed a checksum or parse.
	// The offending artifact is quarantined; the database stays open.
	Corruption
	// Cancelled means the caller's context was cancelled mid-operation.
	Cancelled
	// TimedOut means the caller's deadline elapsed. If the operation had
	// already reached its WAL commit point, it is still considered to
	// have succeeded.
	TimedOut
	// CoordinationFailure means a CoordinatedDeletion step failed after
	// the rollback journal was applied.
	CoordinationFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case NotFound:
		return "NotFound"
	case DuplicateId:
		return "DuplicateId"
	case IOTransient:
		return "IO(transient)"
	case IOPermanent:
		return "IO(permanent)"
	case Corruption:
		return "Corruption"
	case Cancelled:
		return "Cancelled"
	case TimedOut:
		return "TimedOut"
	case CoordinationFailure:
		return "CoordinationFailure"
	default:
		return "Unknown"
	}
}

// Context carries the structured fields spec §7 requires on every error:
// the operation that failed, the ids involved, and the trace id assigned
// by the Traced wrapper layer (empty outside a wrapped call).
type Context struct {
	Op      string
	Ids     []string
	TraceID string
	// Step is only meaningful for CoordinationFailure: the coordinator
	// step ("trigram", "primary", "storage") at which the failure
	// occurred.
	Step string
}

// Error is the single error type for the whole core. It is always
// produced via one of the constructors below so Kind and Context are
// always populated together.
type Error struct {
	Kind    Kind
	Message string
	Ctx     Context
	Cause   error
}

func (e *Error) Error() string {
	if e.Ctx.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if len(e.Ctx.Ids) == 0 {
		return fmt.Sprintf("%s: %s (op=%s)", e.Kind, e.Message, e.Ctx.Op)
	}
	return fmt.Sprintf("%s: %s (op=%s ids=%v)", e.Kind, e.Message, e.Ctx.Op, e.Ctx.Ids)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, kotaerr.NotFoundErr) style sentinel comparisons
// by Kind rather than identity, since every NotFound carries different
// Context.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newError(kind Kind, op string, message string, cause error, ids ...string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Ctx:     Context{Op: op, Ids: ids},
	}
}

func NewInvalidInput(op, message string, ids ...string) *Error {
	return newError(InvalidInput, op, message, nil, ids...)
}

func NewNotFound(op string, ids ...string) *Error {
	return newError(NotFound, op, "no live entry", nil, ids...)
}

func NewDuplicateId(op string, ids ...string) *Error {
	return newError(DuplicateId, op, "id already present", nil, ids...)
}

func NewIOTransient(op string, cause error, ids ...string) *Error {
	return newError(IOTransient, op, "transient I/O failure", cause, ids...)
}

func NewIOPermanent(op string, cause error, ids ...string) *Error {
	return newError(IOPermanent, op, "permanent I/O failure", cause, ids...)
}

func NewCorruption(op, message string, cause error, ids ...string) *Error {
	return newError(Corruption, op, message, cause, ids...)
}

func NewCancelled(op string, ids ...string) *Error {
	return newError(Cancelled, op, "operation cancelled", nil, ids...)
}

func NewTimedOut(op string, ids ...string) *Error {
	return newError(TimedOut, op, "deadline exceeded", nil, ids...)
}

func NewCoordinationFailure(op, step string, cause error, ids ...string) *Error {
	e := newError(CoordinationFailure, op, "coordinated step failed: "+step, cause, ids...)
	e.Ctx.Step = step
	return e
}

// WithTraceID returns a copy of err annotated with a trace id, used by the
// Traced wrapper layer before returning an error to its caller.
func WithTraceID(err error, traceID string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	cp.Ctx.TraceID = traceID
	return &cp
}

// KindOf extracts the Kind of err, or (0, false) if err is not (or does
// not wrap) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsRetryable reports whether the Retryable wrapper should retry err.
// Only IOTransient is retried; everything else, including IOPermanent, is
// surfaced immediately per spec §7's recovery-policy table.
func IsRetryable(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == IOTransient
}

// IsNotFound reports whether err is a NotFound error, the one kind that
// delete treats as a successful no-op.
func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == NotFound
}
