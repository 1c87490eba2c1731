package booking

import (
	"errors"
	"fmt"
)

// PolicyViolationKind identifies which institutional rule a candidate broke.
type PolicyViolationKind string

const (
	KindInvalidDomain    PolicyViolationKind = "invalid_domain"
	KindDurationExceeded PolicyViolationKind = "duration_exceeded"
	KindCapacityExceeded PolicyViolationKind = "capacity_exceeded"
	KindQuotaExceeded    PolicyViolationKind = "quota_exceeded"
	KindPastStart        PolicyViolationKind = "past_start"
)

// PolicyViolation is a typed, expected rejection from the policy validator.
type PolicyViolation struct {
	Kind   PolicyViolationKind
	Detail string
}

// Error implements the error interface.
func (v *PolicyViolation) Error() string {
	if v.Detail == "" {
		return fmt.Sprintf("policy violation: %s", v.Kind)
	}
	return fmt.Sprintf("policy violation: %s: %s", v.Kind, v.Detail)
}

var (
	// ErrConflict is returned when the requested window overlaps an
	// existing pending or confirmed reservation on the same local.
	ErrConflict = errors.New("booking: conflicting reservation")
	// ErrNotFound is returned when the referenced reservation or local
	// does not exist.
	ErrNotFound = errors.New("booking: not found")
	// ErrInvalidTransition is returned when a lifecycle transition is
	// attempted from a state that does not permit it.
	ErrInvalidTransition = errors.New("booking: invalid transition")
	// ErrCancellationTooLate is returned when the owner cancels inside the
	// cancellation deadline window.
	ErrCancellationTooLate = errors.New("booking: cancellation too late")
	// ErrForbidden is returned when the acting principal may not operate
	// on the reservation.
	ErrForbidden = errors.New("booking: forbidden")
	// ErrLocalUnavailable is returned when the targeted local has been
	// administratively taken out of service.
	ErrLocalUnavailable = errors.New("booking: local unavailable")
	// ErrInvalidInterval is returned when the candidate window does not
	// satisfy end > start.
	ErrInvalidInterval = errors.New("booking: end must be after start")
	// ErrReasonRequired is returned when an admin rejection or cancellation
	// omits its mandatory reason.
	ErrReasonRequired = errors.New("booking: reason required")
	// ErrBusy is returned when the commit boundary timed out; callers may
	// retry with backoff. It is the only retryable kind.
	ErrBusy = errors.New("booking: busy, retry later")
)
