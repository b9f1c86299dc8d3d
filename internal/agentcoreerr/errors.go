// Package agentcoreerr defines the engine's typed error-kind sentinels,
// wrapped with context by the components that raise them.
package agentcoreerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the engine's well-known error conditions.
type Kind string

const (
	KindNotConfigured       Kind = "not_configured"
	KindSessionNotFound     Kind = "session_not_found"
	KindSessionPaused       Kind = "session_paused"
	KindMaxRoundsExceeded   Kind = "max_rounds_exceeded"
	KindToolParseError      Kind = "tool_parse_error"
	KindPermissionDenied    Kind = "permission_denied"
	KindConfirmationTimeout Kind = "confirmation_timeout"
	KindRejected            Kind = "rejected"
	KindCancelled           Kind = "cancelled"
	KindPersistenceFailed   Kind = "persistence_failed"
	KindIngressInvalid      Kind = "ingress_invalid"
	KindInternalRuntime     Kind = "internal_runtime"

	KindCronJobNotFound        Kind = "cronjob_not_found"
	KindCronJobDuplicateName   Kind = "cronjob_duplicate_name"
	KindCronJobInvalidSchedule Kind = "cronjob_invalid_schedule"
)

// Error is the engine's wrapped error type: a Kind plus a message and an
// optional cause, so callers can both pattern-match on Kind and unwrap to
// the original error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error carrying cause as its Unwrap target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind, looking through
// any wrapping via errors.As.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
