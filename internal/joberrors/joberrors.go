// Package joberrors implements the error-kind taxonomy from the batch jobs
// error handling design: a small set of sentinel-wrapped kinds checked with
// errors.Is/errors.As, never exceptions used for control flow.
//
// Propagation policy: per-item errors (TenantMisconfigured, ProviderTransient,
// ProviderPermanent, DataNotFound) are caught at the item boundary by the
// calling workflow and recorded on the appropriate audit table; they never
// escape a worker. ConfigurationError is fatal at boot. ValidationError
// surfaces as a 400 at the trigger endpoint before any work starts.
// Cancelled marks a job FAILED with reason "cancelled".
package joberrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the taxonomy's error classes.
type Kind string

const (
	KindConfiguration       Kind = "CONFIGURATION"
	KindTenantMisconfigured Kind = "TENANT_MISCONFIGURED"
	KindProviderTransient   Kind = "PROVIDER_TRANSIENT"
	KindProviderPermanent   Kind = "PROVIDER_PERMANENT"
	KindDataNotFound        Kind = "DATA_NOT_FOUND"
	KindDataInconsistent    Kind = "DATA_INCONSISTENT"
	KindValidation          Kind = "VALIDATION"
	KindCancelled           Kind = "CANCELLED"
)

// Error is the concrete error type carried through the taxonomy. Kind is
// matched with errors.As, never by string comparison.
type Error struct {
	Kind    Kind
	Message string
	Err     error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, so
// errors.Is(err, joberrors.NewProviderTransient("", nil)) style checks work
// with any message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func NewConfigurationError(msg string) *Error { return newErr(KindConfiguration, msg, nil) }

func NewTenantMisconfigured(msg string, cause error) *Error {
	return newErr(KindTenantMisconfigured, msg, cause)
}

func NewProviderTransient(msg string, cause error) *Error {
	return newErr(KindProviderTransient, msg, cause)
}

func NewProviderPermanent(msg string, cause error) *Error {
	return newErr(KindProviderPermanent, msg, cause)
}

func NewDataNotFound(msg string) *Error { return newErr(KindDataNotFound, msg, nil) }

func NewDataInconsistent(msg string) *Error { return newErr(KindDataInconsistent, msg, nil) }

func NewValidationError(msg string) *Error { return newErr(KindValidation, msg, nil) }

func NewCancelled(msg string) *Error { return newErr(KindCancelled, msg, nil) }

// KindOf extracts the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
