// Package apperrors provides the typed error taxonomy returned by the
// organization services.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wolfeidau/orgscope/internal/store"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindUnknown                      Kind = "UNKNOWN"
	KindInvalidEmail                 Kind = "INVALID_EMAIL"
	KindForbidden                    Kind = "FORBIDDEN"
	KindDuplicateDefaultOrganization Kind = "DUPLICATE_DEFAULT_ORGANIZATION"
	KindLastOrganization             Kind = "LAST_ORGANIZATION"
	KindCannotDeleteCurrent          Kind = "CANNOT_DELETE_CURRENT"
	KindHasActiveMembers             Kind = "HAS_ACTIVE_MEMBERS"
	KindAlreadyMember                Kind = "ALREADY_MEMBER"
	KindActiveInvitationExists       Kind = "ACTIVE_INVITATION_EXISTS"
	KindAlreadyResolved              Kind = "ALREADY_RESOLVED"
	KindExpired                      Kind = "EXPIRED"
	KindEmailMismatch                Kind = "EMAIL_MISMATCH"
	KindValidationFailed             Kind = "VALIDATION_FAILED"
	KindNotFound                     Kind = "NOT_FOUND"
	KindStorageUnavailable           Kind = "STORAGE_UNAVAILABLE"
	KindSlugCollision                Kind = "SLUG_COLLISION"
)

// Sentinels for use with errors.Is.
var (
	ErrInvalidEmail                 = &Error{Kind: KindInvalidEmail}
	ErrForbidden                    = &Error{Kind: KindForbidden}
	ErrDuplicateDefaultOrganization = &Error{Kind: KindDuplicateDefaultOrganization}
	ErrLastOrganization             = &Error{Kind: KindLastOrganization}
	ErrCannotDeleteCurrent          = &Error{Kind: KindCannotDeleteCurrent}
	ErrHasActiveMembers             = &Error{Kind: KindHasActiveMembers}
	ErrAlreadyMember                = &Error{Kind: KindAlreadyMember}
	ErrActiveInvitationExists       = &Error{Kind: KindActiveInvitationExists}
	ErrAlreadyResolved              = &Error{Kind: KindAlreadyResolved}
	ErrExpired                      = &Error{Kind: KindExpired}
	ErrEmailMismatch                = &Error{Kind: KindEmailMismatch}
	ErrValidationFailed             = &Error{Kind: KindValidationFailed}
	ErrNotFound                     = &Error{Kind: KindNotFound}
	ErrStorageUnavailable           = &Error{Kind: KindStorageUnavailable}
	ErrSlugCollision                = &Error{Kind: KindSlugCollision}
)

// Error is the domain error type. Message is safe to show to end users.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string // only set for KindValidationFailed
	Cause   error
}

func (e *Error) Error() string {
	if e.Kind == KindValidationFailed && len(e.Fields) > 0 && e.Message == "" {
		return "validation failed: " + e.fieldSummary()
	}
	if e.Message == "" {
		return strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func (e *Error) fieldSummary() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return strings.Join(parts, "; ")
}

// New creates a domain error with a kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validation creates a ValidationFailed error carrying per-field messages.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidationFailed, Fields: fields}
}

// FieldError is shorthand for a validation error on a single field.
func FieldError(field, message string) *Error {
	return Validation(map[string][]string{field: {message}})
}

// KindOf returns the kind of the first *Error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FieldsOf returns the field map of a validation error, or nil.
func FieldsOf(err error) map[string][]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return KindOf(err) == KindStorageUnavailable
}

// IsBusinessRule reports whether err is a user-correctable failure rather than
// a system fault.
func IsBusinessRule(err error) bool {
	switch KindOf(err) {
	case KindUnknown, KindStorageUnavailable:
		return false
	}
	return true
}

// FromStore converts store sentinel errors into domain errors. Domain errors
// and nil pass through unchanged.
func FromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrStorageUnavailable):
		return Wrap(KindStorageUnavailable, "The service is temporarily unavailable, please try again.", err)
	case errors.Is(err, store.ErrNotFound):
		return Wrap(KindNotFound, fmt.Sprintf("The %s could not be found.", notFoundSubject(err, what)), err)
	case errors.Is(err, store.ErrMembershipAlreadyExists):
		return Wrap(KindAlreadyMember, "This user is already a member of the organization.", err)
	case errors.Is(err, store.ErrActiveInvitationConflict):
		return Wrap(KindActiveInvitationExists, "An active invitation already exists for this email address.", err)
	case errors.Is(err, store.ErrNameConflict):
		verr := FieldError("name", "An organization with this name already exists.")
		verr.Cause = err
		return verr
	}
	return err
}

func notFoundSubject(err error, fallback string) string {
	switch {
	case errors.Is(err, store.ErrOrganizationNotFound):
		return "organization"
	case errors.Is(err, store.ErrUserNotFound):
		return "user"
	case errors.Is(err, store.ErrInvitationNotFound):
		return "invitation"
	case errors.Is(err, store.ErrMembershipNotFound):
		return "membership"
	}
	return fallback
}
