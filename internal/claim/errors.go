package claim

import "errors"

// Validation errors. Any of these aborts submission before anything is
// persisted.
var (
	ErrUnknownCategory    = errors.New("unknown claim category")
	ErrMissingDescription = errors.New("description is required")
	ErrMissingEvidence    = errors.New("at least one evidence attachment is required")
	ErrInvalidMilesValue  = errors.New("miles value must be a positive number")
	ErrMissingDetailField = errors.New("required detail field is missing")
)

// Lifecycle errors.
var (
	ErrNotFound               = errors.New("claim not found")
	ErrInvalidStateTransition = errors.New("invalid claim state transition")
	ErrConcurrentModification = errors.New("claim was modified concurrently")
	ErrLedgerCreditFailed     = errors.New("miles ledger credit failed")
	ErrOperationTimedOut      = errors.New("claim operation timed out")
	ErrUnauthorized           = errors.New("caller is not authorized for this action")
)

// Kind returns a stable machine-readable identifier for a lifecycle or
// validation error. Admin-facing responses surface this directly.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, ErrMissingDescription):
		return "missing_description"
	case errors.Is(err, ErrMissingEvidence):
		return "missing_evidence"
	case errors.Is(err, ErrInvalidMilesValue):
		return "invalid_miles_value"
	case errors.Is(err, ErrMissingDetailField):
		return "missing_detail_field"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrLedgerCreditFailed):
		return "ledger_credit_failed"
	case errors.Is(err, ErrOperationTimedOut):
		return "operation_timed_out"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}

// IsValidation reports whether err is a submission validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrMissingDescription) ||
		errors.Is(err, ErrMissingEvidence) ||
		errors.Is(err, ErrInvalidMilesValue) ||
		errors.Is(err, ErrMissingDetailField)
}
