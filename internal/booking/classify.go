package booking

import (
	"time"

	"reservation-backend/internal/model"
)

// SingleDay reports whether the window lies within one calendar day in the
// given location. A reservation running up to midnight of the next day counts
// as multi-day even though its interval is half-open.
func SingleDay(startsAt, endsAt time.Time, loc *time.Location) bool {
	y1, m1, d1 := startsAt.In(loc).Date()
	y2, m2, d2 := endsAt.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Classify decides the initial status of a validated, conflict-free
// candidate: confirmed when the event is single-day and auto-approval is
// enabled, pending (manual review) otherwise. Pure so the routing rule can
// be tested without persistence.
func Classify(startsAt, endsAt time.Time, loc *time.Location, autoApprove bool) model.ReservationStatus {
	if autoApprove && SingleDay(startsAt, endsAt, loc) {
		return model.StatusConfirmed
	}
	return model.StatusPending
}
