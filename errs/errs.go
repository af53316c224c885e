// Package errs defines the error-kind taxonomy shared by every package in
// the engine module. Validation and lookup failures are represented as a
// Kind rather than a distinct Go type, so callers can branch with a single
// errors.As on *Error.
package errs

import "fmt"

// Kind categorizes a failure the way the host is expected to react to it:
// validation errors are rejected synchronously at the call site, lookup and
// duplicate errors come from the resolver/registry, and the rest surface
// asynchronously on a promise.
type Kind string

const (
	KindNullArgument          Kind = "null_argument"
	KindBadPriority           Kind = "bad_priority"
	KindBadDelay              Kind = "bad_delay"
	KindBadTime               Kind = "bad_time"
	KindBadCron               Kind = "bad_cron"
	KindNoServiceRegistered   Kind = "no_service_registered"
	KindDuplicateRegistration Kind = "duplicate_registration"
	KindEmptyArgumentSet      Kind = "empty_argument_set"
)

// Error wraps a Kind with the underlying cause. It supports errors.Is against
// a sentinel built with the same Kind and errors.Unwrap against Cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Msg: cause.Error(), Cause: cause}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, errs.New(errs.KindBadPriority, "")) against a
// freshly-built sentinel, or more simply use Is(err, kind) below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
