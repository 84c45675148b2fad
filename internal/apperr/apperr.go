// Package apperr classifies errors so that chat and HTTP entry points can decide
// what to show and whether to retry.
package apperr

import (
	"strings"

	"github.com/zeebo/errs"
)

var (
	// Validation marks malformed user input.
	Validation = errs.Class("validation")
	// NotFound marks an unknown order, product, voucher or session.
	NotFound = errs.Class("not found")
	// Unauthorized marks an action the caller may not perform.
	Unauthorized = errs.Class("unauthorized")
	// Upstream marks a payment gateway failure.
	Upstream = errs.Class("upstream")
	// Conflict marks a transition that is a no-op because the state already advanced.
	Conflict = errs.Class("conflict")
)

const (
	genericFailure   = "Something went wrong, please try again."
	genericForbidden = "This action is not available."
)

// UserMessage returns the text a chat user should see for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case Unauthorized.Has(err):
		return genericForbidden
	case Validation.Has(err), NotFound.Has(err), Upstream.Has(err):
		return strip(err)
	default:
		return genericFailure
	}
}

// Classified reports whether err belongs to one of the user-facing classes.
// Anything else is an internal failure worth logging.
func Classified(err error) bool {
	return Validation.Has(err) || NotFound.Has(err) || Unauthorized.Has(err) || Upstream.Has(err) || Conflict.Has(err)
}

// IsConflict reports whether err is an idempotent no-op.
func IsConflict(err error) bool {
	return err != nil && Conflict.Has(err)
}

// strip drops the class prefixes errs adds so the innermost message is shown.
func strip(err error) string {
	msg := err.Error()
	for trimmed := true; trimmed; {
		trimmed = false
		for _, class := range []errs.Class{Validation, NotFound, Upstream} {
			if prefix := string(class) + ": "; strings.HasPrefix(msg, prefix) {
				msg = strings.TrimPrefix(msg, prefix)
				trimmed = true
			}
		}
	}
	if msg == "" {
		return genericFailure
	}
	return msg
}
