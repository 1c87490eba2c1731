package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// intersect. Touching boundaries do not conflict.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// HasConflict checks the candidate window against every pending or confirmed
// reservation for the local. excludeID skips the reservation being
// re-evaluated during an admin decision replay; pass uuid.Nil otherwise.
//
// This is the advisory pre-check only. The authoritative recheck runs inside
// the store's commit boundary, so two concurrent submissions on the same
// local cannot both pass.
func (s *Service) HasConflict(ctx context.Context, localID int64, startsAt, endsAt time.Time, excludeID uuid.UUID) (bool, error) {
	existing, err := s.store.ActiveReservationsInWindow(ctx, localID, startsAt, endsAt, excludeID)
	if err != nil {
		return false, err
	}
	for _, r := range existing {
		if Overlaps(startsAt, endsAt, r.StartsAt, r.EndsAt) {
			return true, nil
		}
	}
	return false, nil
}
