package errors

import (
	"context"
	"errors"
	"maps"
)

// Kind classifies a failure so callers can decide between correcting input,
// refreshing state, retrying, or escalating to an operator.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindTransient  Kind = "transient"
	KindFatal      Kind = "fatal"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindUnknown    Kind = "unknown"
)

// Error is the single error type emitted by the election service. Two errors
// match under errors.Is when their codes are equal, so a detailed copy still
// matches the package sentinel it was derived from.
type Error struct {
	kind    Kind
	code    string
	message string
	details map[string]any
	cause   error
}

func newError(kind Kind, code string, message string) *Error {
	return &Error{kind: kind, code: code, message: message}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Message() string {
	return e.message
}

// Details returns a copy of the correction details attached to the error.
func (e *Error) Details() map[string]any {
	if len(e.details) == 0 {
		return nil
	}
	return maps.Clone(e.details)
}

// WithDetails derives a copy of a sentinel carrying extra detail. Existing
// details on the sentinel are kept unless overwritten.
func WithDetails(err error, details map[string]any) error {
	var base *Error
	if !errors.As(err, &base) {
		return err
	}
	merged := make(map[string]any, len(base.details)+len(details))
	maps.Copy(merged, base.details)
	maps.Copy(merged, details)
	return &Error{
		kind:    base.kind,
		code:    base.code,
		message: base.message,
		details: merged,
		cause:   base.cause,
	}
}

// Wrap attaches an underlying cause to a sentinel.
func Wrap(sentinel *Error, cause error) error {
	return &Error{
		kind:    sentinel.kind,
		code:    sentinel.code,
		message: sentinel.message,
		details: sentinel.details,
		cause:   cause,
	}
}

// Unavailable classifies an infrastructure failure as retryable. Domain
// errors pass through untouched.
func Unavailable(cause error) error {
	if cause == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(cause, &domainErr) {
		return cause
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return Wrap(ErrTimeout, cause)
	}
	return Wrap(ErrStoreUnavailable, cause)
}

// KindOf reports the kind of any error. Bare deadline errors are transient,
// anything else that is not a domain error is unknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindUnknown
}

// Validation errors: the caller must correct its input.
var (
	ErrInvalidInput        = newError(KindValidation, "invalid_input", "invalid input")
	ErrInvalidTransition   = newError(KindValidation, "invalid_transition", "case status does not allow this transition")
	ErrCaseNotReviewed     = newError(KindValidation, "case_not_reviewed", "case must be reviewed before requesting an appointment")
	ErrCaseNotPassed       = newError(KindValidation, "case_not_passed", "case has not passed screening")
	ErrScreeningIncomplete = newError(KindValidation, "screening_incomplete", "required documents or screening appointment unresolved")
	ErrAppointmentNotFound = newError(KindValidation, "appointment_missing", "case has no appointment to decide")
	ErrAppointmentDecided  = newError(KindValidation, "appointment_already_decided", "appointment is not pending")
	ErrWindowClosed        = newError(KindValidation, "window_closed", "phase window is closed")
	ErrCardinalityExceeded = newError(KindValidation, "cardinality_exceeded", "too many selections for position")
	ErrInstituteMismatch   = newError(KindValidation, "institute_mismatch", "scoped position belongs to another institute")
	ErrUnknownPosition     = newError(KindValidation, "unknown_position", "position is not on the ballot")
	ErrIneligibleCandidate = newError(KindValidation, "ineligible_candidate", "candidate is not eligible for position")
	ErrVoterNotVerified    = newError(KindValidation, "voter_not_verified", "voter email is not verified")
	ErrInvalidWindow       = newError(KindValidation, "invalid_window", "window start must be before end")
	ErrInvalidDefinition   = newError(KindValidation, "invalid_ballot_definition", "ballot definition is invalid")
	ErrMaterialDecided     = newError(KindValidation, "material_already_decided", "campaign material is not pending")
	ErrArchiveNotResumable = newError(KindValidation, "archive_not_resumable", "archive run is not in failed state")
)

// Conflict errors: the caller should refresh state instead of retrying.
var (
	ErrActiveCaseExists       = newError(KindConflict, "active_case_exists", "applicant already has an active candidacy case")
	ErrCaseTerminal           = newError(KindConflict, "case_terminal", "case already in terminal state")
	ErrConcurrentModification = newError(KindConflict, "concurrent_modification", "record was modified concurrently")
	ErrSlotTaken              = newError(KindConflict, "slot_taken", "screening slot already taken")
	ErrSlotExists             = newError(KindConflict, "slot_exists", "screening slot already exists")
	ErrSlotReserved           = newError(KindConflict, "slot_reserved", "screening slot is reserved")
	ErrAppointmentExists      = newError(KindConflict, "appointment_exists", "case already holds a non-rejected appointment")
	ErrRosterEntryExists      = newError(KindConflict, "roster_entry_exists", "candidate already has a roster entry")
	ErrBallotAlreadyCast      = newError(KindConflict, "ballot_already_cast", "ballot already cast for voter")
	ErrArchiveInProgress      = newError(KindConflict, "archive_in_progress", "another archive run holds the archive lock")
	ErrArchiveExists          = newError(KindConflict, "archive_exists", "archive snapshot already exists")
)

// Not found and forbidden.
var (
	ErrIdentityNotFound     = newError(KindNotFound, "identity_not_found", "identity not found")
	ErrCaseNotFound         = newError(KindNotFound, "case_not_found", "candidacy case not found")
	ErrSlotNotFound         = newError(KindNotFound, "slot_not_found", "screening slot not found")
	ErrRosterEntryNotFound  = newError(KindNotFound, "roster_entry_not_found", "roster entry not found")
	ErrMaterialNotFound     = newError(KindNotFound, "material_not_found", "campaign material not found")
	ErrBallotNotFound       = newError(KindNotFound, "ballot_not_found", "ballot not found")
	ErrWindowNotFound       = newError(KindNotFound, "window_not_configured", "phase window not configured")
	ErrArchiveNotFound      = newError(KindNotFound, "archive_not_found", "archive not found")
	ErrArchiveRunNotFound   = newError(KindNotFound, "archive_run_not_found", "archive run not found")
	ErrNotificationNotFound = newError(KindNotFound, "notification_not_found", "notification not found")
	ErrForbidden            = newError(KindForbidden, "forbidden", "actor is not allowed to perform this action")
)

// Transient and fatal.
var (
	ErrStoreUnavailable  = newError(KindTransient, "store_unavailable", "storage unavailable")
	ErrTimeout           = newError(KindTransient, "timeout", "storage call timed out")
	ErrArchiveIncomplete = newError(KindFatal, "archive_incomplete", "archive transaction partially applied; operator must resume")
)
