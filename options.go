package engine

import "github.com/kahoon/engine/errs"

// Kind and Error re-export the errs package's taxonomy at the root so host
// code can do engine.Is(err, engine.KindBadPriority) without a second import.
type Kind = errs.Kind

type Error = errs.Error

const (
	KindNullArgument          = errs.KindNullArgument
	KindBadPriority           = errs.KindBadPriority
	KindBadDelay              = errs.KindBadDelay
	KindBadTime               = errs.KindBadTime
	KindBadCron               = errs.KindBadCron
	KindNoServiceRegistered   = errs.KindNoServiceRegistered
	KindDuplicateRegistration = errs.KindDuplicateRegistration
	KindEmptyArgumentSet      = errs.KindEmptyArgumentSet
)

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool { return errs.Is(err, kind) }

// NewError builds an *Error of the given Kind with msg as its description.
func NewError(kind Kind, msg string) *Error { return errs.New(kind, msg) }

// Wrap builds an *Error of the given Kind wrapping cause, preserving it for
// errors.Is/errors.As.
func Wrap(kind Kind, cause error) *Error { return errs.Wrap(kind, cause) }
