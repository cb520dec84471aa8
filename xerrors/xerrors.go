// Package xerrors defines the structured error kinds the orchestrator's
// components raise. Every public operation fails with one of these kinds
// rather than an ad-hoc error string, so callers (the CLI, the engine, the
// scheduler) can classify and react without parsing messages.
package xerrors

import "fmt"

// Kind discriminates the abstract error categories of the orchestrator.
type Kind string

const (
	// KindValidation marks malformed static input: unknown references,
	// cycles, unreachable nodes, missing required fields.
	KindValidation Kind = "validation"
	// KindAgentNotFound marks a reference absent from the registry.
	KindAgentNotFound Kind = "agent_not_found"
	// KindInsufficientBudget marks a wallet balance below a requested
	// reservation.
	KindInsufficientBudget Kind = "insufficient_budget"
	// KindPayment marks a 402 challenge that could not be satisfied.
	KindPayment Kind = "payment"
	// KindExecution marks a failure during or after invocation: timeouts,
	// transport failures, malformed responses, exhausted retries.
	KindExecution Kind = "execution"
	// KindState marks an illegal run or reservation state transition.
	KindState Kind = "state"
)

// Error is the structured error type used throughout the orchestrator. It
// carries a Kind for classification, a Message, and an optional wrapped
// Cause (transport details, stack-adjacent context) whose text Error()
// appends after the message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface as "kind: message", followed by
// ": cause" when a Cause is set.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New constructs an Error of the given kind with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping cause. If cause is
// nil, Wrap returns nil so call sites can write `return xerrors.Wrap(...)`
// unconditionally after an `if err != nil` check without double-wrapping.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
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

// Validation is a convenience constructor for KindValidation errors.
func Validation(format string, args ...any) *Error { return Newf(KindValidation, format, args...) }

// AgentNotFound is a convenience constructor for KindAgentNotFound errors.
func AgentNotFound(ref string) *Error {
	return Newf(KindAgentNotFound, "agent %q not found", ref)
}

// InsufficientBudget is a convenience constructor for KindInsufficientBudget errors.
func InsufficientBudget(format string, args ...any) *Error {
	return Newf(KindInsufficientBudget, format, args...)
}

// Payment is a convenience constructor for KindPayment errors.
func Payment(format string, args ...any) *Error { return Newf(KindPayment, format, args...) }

// Execution is a convenience constructor for KindExecution errors.
func Execution(format string, args ...any) *Error { return Newf(KindExecution, format, args...) }

// State is a convenience constructor for KindState errors.
func State(format string, args ...any) *Error { return Newf(KindState, format, args...) }
