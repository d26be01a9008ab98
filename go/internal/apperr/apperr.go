package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error for transport mapping and display.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindUpstream     Kind = "upstream"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

// Error is an error with a kind attached.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed input.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown or expired room, or an unknown user.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidState reports an operation that is illegal in the current state.
func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a failure of an external collaborator.
func Upstream(err error, format string, args ...any) error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), Err: err}
}

// Forbidden reports an actor changing something it does not own.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsInvalidState(err error) bool { return KindOf(err) == KindInvalidState }
func IsUpstream(err error) bool     { return KindOf(err) == KindUpstream }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }

// DisplayMessage renders err for an end user. Each kind has its own wording
// so clients never show a bare failure.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	detail := ""
	if errors.As(err, &e) {
		detail = e.Message
	}
	switch KindOf(err) {
	case KindValidation:
		return "Please check your input: " + detail
	case KindNotFound:
		return "Not found. Check your code, the room may have expired: " + detail
	case KindInvalidState:
		return "That action is not available right now: " + detail
	case KindUpstream:
		return "Suggestions are unavailable at the moment, please try again: " + detail
	case KindForbidden:
		return "You are not allowed to do that: " + detail
	}
	return "Something went wrong, please try again"
}
