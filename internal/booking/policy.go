package booking

import (
	"fmt"
	"strings"
	"time"
)

// Policy holds the institutional reservation rules checked on every
// submission.
type Policy struct {
	AllowedEmailDomains []string
	MaxDuration         time.Duration
	MaxActivePerUser    int
}

// Candidate is a reservation request under validation.
type Candidate struct {
	UserEmail    string
	LocalID      int64
	StartsAt     time.Time
	EndsAt       time.Time
	Participants int
	EventType    string
}

// Snapshot is the read-only state the validator needs: the targeted local's
// capacity, the requester's active reservation count and the submission time.
type Snapshot struct {
	Capacity    int
	ActiveCount int64
	Now         time.Time
}

// Validate checks the candidate against the policy, short-circuiting on the
// first failure. It is a pure function of the candidate and the snapshot.
func (p Policy) Validate(c Candidate, s Snapshot) error {
	if !p.domainAllowed(c.UserEmail) {
		return &PolicyViolation{
			Kind:   KindInvalidDomain,
			Detail: fmt.Sprintf("email %q is not an institutional address", c.UserEmail),
		}
	}

	if c.EndsAt.Sub(c.StartsAt) > p.MaxDuration {
		return &PolicyViolation{
			Kind:   KindDurationExceeded,
			Detail: fmt.Sprintf("duration exceeds the maximum of %s", p.MaxDuration),
		}
	}

	if c.Participants > s.Capacity {
		return &PolicyViolation{
			Kind:   KindCapacityExceeded,
			Detail: fmt.Sprintf("%d participants exceed the local capacity of %d", c.Participants, s.Capacity),
		}
	}

	if s.ActiveCount >= int64(p.MaxActivePerUser) {
		return &PolicyViolation{
			Kind:   KindQuotaExceeded,
			Detail: fmt.Sprintf("user already holds %d active reservations", s.ActiveCount),
		}
	}

	if !c.StartsAt.After(s.Now) {
		return &PolicyViolation{
			Kind:   KindPastStart,
			Detail: "start must be in the future",
		}
	}

	return nil
}

func (p Policy) domainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, allowed := range p.AllowedEmailDomains {
		if domain == strings.ToLower(strings.TrimPrefix(allowed, "@")) {
			return true
		}
	}
	return false
}
