package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservation-backend/config"
	"reservation-backend/internal/model"
)

// fakeStore is an in-memory implementation of the Store contract.
type fakeStore struct {
	locals       map[int64]*model.Local
	reservations map[uuid.UUID]*model.Reservation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		locals:       make(map[int64]*model.Local),
		reservations: make(map[uuid.UUID]*model.Reservation),
	}
}

func (f *fakeStore) GetLocal(_ context.Context, id int64) (*model.Local, error) {
	local, ok := f.locals[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *local
	return &copied, nil
}

func (f *fakeStore) GetReservation(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	r, ok := f.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) CountActiveReservations(_ context.Context, userID int64, now time.Time) (int64, error) {
	var count int64
	for _, r := range f.reservations {
		if r.UserID == userID && r.Status.Active() && !r.EndsAt.Before(now) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ActiveReservationsInWindow(_ context.Context, localID int64, startsAt, endsAt time.Time, excludeID uuid.UUID) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range f.reservations {
		if r.LocalID != localID || !r.Status.Active() || r.ID == excludeID {
			continue
		}
		if Overlaps(startsAt, endsAt, r.StartsAt, r.EndsAt) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateReservationChecked(_ context.Context, r *model.Reservation) error {
	for _, existing := range f.reservations {
		if existing.LocalID == r.LocalID && existing.Status.Active() &&
			Overlaps(r.StartsAt, r.EndsAt, existing.StartsAt, existing.EndsAt) {
			return ErrConflict
		}
	}
	copied := *r
	f.reservations[r.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateReservationStatus(_ context.Context, id uuid.UUID, from []model.ReservationStatus, updates map[string]any) (bool, error) {
	r, ok := f.reservations[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if r.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	for key, value := range updates {
		switch key {
		case "status":
			r.Status = value.(model.ReservationStatus)
		case "decided_at":
			at := value.(time.Time)
			r.DecidedAt = &at
		case "decided_by_id":
			by := value.(int64)
			r.DecidedByID = &by
		case "reason":
			r.Reason = value.(string)
		}
	}
	return true, nil
}

func (f *fakeStore) ListHistory(_ context.Context, filter HistoryFilter) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range f.reservations {
		if r.Status.Terminal() {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUserReservations(_ context.Context, userID int64) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range f.reservations {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// recorder collects dispatched transition events.
type recorder struct {
	events []Event
}

func (r *recorder) Dispatch(e Event) { r.events = append(r.events, e) }

var testNow = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store Store, notifier Dispatcher) *Service {
	t.Helper()
	svc, err := NewService(store, notifier, &config.PolicyConfig{
		AllowedEmailDomains:    []string{"uca.ma", "uca.ac.ma"},
		MaxDuration:            7 * 24 * time.Hour,
		MaxReservationsPerUser: 5,
		CancellationDeadline:   12 * time.Hour,
		Timezone:               "UTC",
	})
	require.NoError(t, err)
	return svc.WithClock(func() time.Time { return testNow })
}

func seedLocal(store *fakeStore, id int64, capacity int, available bool) {
	store.locals[id] = &model.Local{ID: id, SiteID: 1, Name: "Room 3", Capacity: capacity, Available: available}
}

var (
	student = Principal{UserID: 1, Email: "student@uca.ma", Role: model.RoleUser}
	other   = Principal{UserID: 2, Email: "other@uca.ma", Role: model.RoleUser}
	admin   = Principal{UserID: 9, Email: "admin@uca.ac.ma", Role: model.RoleAdmin}
)

// tomorrowAt returns a clock time on the day after the fixed test clock.
func tomorrowAt(h int) time.Time {
	return time.Date(2026, 9, 2, h, 0, 0, 0, time.UTC)
}

func TestSubmit_AutoApprovesSingleDay(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	rec := &recorder{}
	svc := newTestService(t, store, rec)

	reservation, err := svc.Submit(context.Background(), student, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10), EndsAt: tomorrowAt(11), Participants: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, reservation.Status)
	assert.NotNil(t, reservation.DecidedAt)
	assert.Nil(t, reservation.DecidedByID, "auto-approval records no decision actor")

	require.Len(t, rec.events, 1)
	assert.Equal(t, reservation.ID, rec.events[0].ReservationID)
	assert.Equal(t, model.StatusConfirmed, rec.events[0].Status)
	assert.Equal(t, student.UserID, rec.events[0].RecipientID)
}

func TestSubmit_MultiDayGoesPending(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})

	reservation, err := svc.Submit(context.Background(), student, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10), EndsAt: tomorrowAt(10).Add(26 * time.Hour), Participants: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, reservation.Status)
	assert.Nil(t, reservation.DecidedAt)
}

func TestSubmit_ConflictAndTouchingBoundary(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, student, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10), EndsAt: tomorrowAt(11), Participants: 10,
	})
	require.NoError(t, err)

	// Overlapping request from another user fails.
	_, err = svc.Submit(ctx, other, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10).Add(30 * time.Minute), EndsAt: tomorrowAt(11).Add(30 * time.Minute), Participants: 10,
	})
	assert.ErrorIs(t, err, ErrConflict)

	// Touching boundary is not a conflict.
	touching, err := svc.Submit(ctx, other, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(11), EndsAt: tomorrowAt(12), Participants: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, touching.Status)
}

func TestSubmit_PolicyViolations(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	ctx := context.Background()

	t.Run("invalid domain", func(t *testing.T) {
		_, err := svc.Submit(ctx, Principal{UserID: 5, Email: "user@gmail.com", Role: model.RoleUser}, SubmitInput{
			LocalID: 3, StartsAt: tomorrowAt(14), EndsAt: tomorrowAt(15), Participants: 10,
		})
		var violation *PolicyViolation
		require.True(t, errors.As(err, &violation))
		assert.Equal(t, KindInvalidDomain, violation.Kind)
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		_, err := svc.Submit(ctx, student, SubmitInput{
			LocalID: 3, StartsAt: tomorrowAt(14), EndsAt: tomorrowAt(15), Participants: 60,
		})
		var violation *PolicyViolation
		require.True(t, errors.As(err, &violation))
		assert.Equal(t, KindCapacityExceeded, violation.Kind)
	})

	t.Run("invalid interval", func(t *testing.T) {
		_, err := svc.Submit(ctx, student, SubmitInput{
			LocalID: 3, StartsAt: tomorrowAt(15), EndsAt: tomorrowAt(14), Participants: 10,
		})
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})

	t.Run("unknown local", func(t *testing.T) {
		_, err := svc.Submit(ctx, student, SubmitInput{
			LocalID: 99, StartsAt: tomorrowAt(14), EndsAt: tomorrowAt(15), Participants: 10,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSubmit_QuotaExceeded(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Submit(ctx, student, SubmitInput{
			LocalID: 3, StartsAt: tomorrowAt(9 + 2*i), EndsAt: tomorrowAt(10 + 2*i), Participants: 5,
		})
		require.NoError(t, err)
	}

	_, err := svc.Submit(ctx, student, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(20), EndsAt: tomorrowAt(21), Participants: 5,
	})
	var violation *PolicyViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, KindQuotaExceeded, violation.Kind)
}

func TestSubmit_UnavailableLocal(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, false)
	svc := newTestService(t, store, &recorder{})

	_, err := svc.Submit(context.Background(), student, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10), EndsAt: tomorrowAt(11), Participants: 10,
	})
	assert.ErrorIs(t, err, ErrLocalUnavailable)
}

func submitPending(t *testing.T, svc *Service, store *fakeStore) *model.Reservation {
	t.Helper()
	reservation, err := svc.Submit(context.Background(), student, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10), EndsAt: tomorrowAt(10).Add(26 * time.Hour), Participants: 10,
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, reservation.Status)
	return reservation
}

func TestDecide_Approve(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	rec := &recorder{}
	svc := newTestService(t, store, rec)
	pending := submitPending(t, svc, store)

	decided, err := svc.Decide(context.Background(), admin, pending.ID, true, "")
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, decided.Status)
	require.NotNil(t, decided.DecidedByID)
	assert.Equal(t, admin.UserID, *decided.DecidedByID)
	assert.NotNil(t, decided.DecidedAt)

	// One event for the submission, one for the decision.
	require.Len(t, rec.events, 2)
	assert.Equal(t, model.StatusConfirmed, rec.events[1].Status)
}

func TestDecide_Reject(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	pending := submitPending(t, svc, store)

	decided, err := svc.Decide(context.Background(), admin, pending.ID, false, "double-booked event")
	require.NoError(t, err)

	assert.Equal(t, model.StatusRefused, decided.Status)
	assert.Equal(t, "double-booked event", decided.Reason)
}

func TestDecide_RequiresAdmin(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	pending := submitPending(t, svc, store)

	_, err := svc.Decide(context.Background(), student, pending.ID, true, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDecide_TerminalStatesAreIdempotent(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	pending := submitPending(t, svc, store)
	ctx := context.Background()

	_, err := svc.Decide(ctx, admin, pending.ID, false, "no")
	require.NoError(t, err)

	// Repeated decisions on a settled reservation always fail.
	_, err = svc.Decide(ctx, admin, pending.ID, true, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Decide(ctx, admin, pending.ID, false, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Cancel(ctx, admin, pending.ID, "cleanup")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDecide_NotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, &recorder{})

	_, err := svc.Decide(context.Background(), admin, uuid.New(), true, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_OwnerBeforeDeadline(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})

	// Starts 26h after the clock, comfortably outside the 12h deadline.
	reservation, err := svc.Submit(context.Background(), student, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10), EndsAt: tomorrowAt(11), Participants: 10,
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), student, reservation.ID, "")
	require.NoError(t, err)

	assert.Equal(t, model.StatusCancelledByUser, cancelled.Status)
	assert.Nil(t, cancelled.DecidedByID, "owner cancellation records no decision actor")
}

func TestCancel_OwnerDeadline(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	ctx := context.Background()

	t.Run("less than 12h before start is too late", func(t *testing.T) {
		reservation, err := svc.Submit(ctx, student, SubmitInput{
			LocalID: 3, StartsAt: testNow.Add(11 * time.Hour), EndsAt: testNow.Add(12 * time.Hour), Participants: 10,
		})
		require.NoError(t, err)

		_, err = svc.Cancel(ctx, student, reservation.ID, "")
		assert.ErrorIs(t, err, ErrCancellationTooLate)
	})

	t.Run("13h before start succeeds", func(t *testing.T) {
		reservation, err := svc.Submit(ctx, student, SubmitInput{
			LocalID: 3, StartsAt: testNow.Add(13 * time.Hour), EndsAt: testNow.Add(14 * time.Hour), Participants: 10,
		})
		require.NoError(t, err)

		cancelled, err := svc.Cancel(ctx, student, reservation.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelledByUser, cancelled.Status)
	})
}

func TestCancel_AdminPath(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	ctx := context.Background()

	// Inside the owner deadline; the admin may still cancel.
	reservation, err := svc.Submit(ctx, student, SubmitInput{
		LocalID: 3, StartsAt: testNow.Add(2 * time.Hour), EndsAt: testNow.Add(3 * time.Hour), Participants: 10,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, admin, reservation.ID, "")
	assert.ErrorIs(t, err, ErrReasonRequired)

	cancelled, err := svc.Cancel(ctx, admin, reservation.ID, "maintenance")
	require.NoError(t, err)

	assert.Equal(t, model.StatusCancelledByAdmin, cancelled.Status)
	require.NotNil(t, cancelled.DecidedByID)
	assert.Equal(t, admin.UserID, *cancelled.DecidedByID)
	assert.Equal(t, "maintenance", cancelled.Reason)
}

func TestCancel_AdminOwnReservation(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	ctx := context.Background()

	// Inside the owner deadline, owned by the admin themselves.
	reservation, err := svc.Submit(ctx, admin, SubmitInput{
		LocalID: 3, StartsAt: testNow.Add(2 * time.Hour), EndsAt: testNow.Add(3 * time.Hour), Participants: 10,
	})
	require.NoError(t, err)

	// Without a reason the admin is just an owner, deadline included.
	_, err = svc.Cancel(ctx, admin, reservation.ID, "")
	assert.ErrorIs(t, err, ErrCancellationTooLate)

	// With a reason the administrative override applies.
	cancelled, err := svc.Cancel(ctx, admin, reservation.ID, "room flooded")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelledByAdmin, cancelled.Status)
	require.NotNil(t, cancelled.DecidedByID)
	assert.Equal(t, admin.UserID, *cancelled.DecidedByID)
}

func TestCancel_StrangerForbidden(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})

	reservation, err := svc.Submit(context.Background(), student, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10), EndsAt: tomorrowAt(11), Participants: 10,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), other, reservation.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

// A slot freed by a refusal becomes bookable again: pending holds are only
// provisional.
func TestRefusedSlotIsReleased(t *testing.T) {
	store := newFakeStore()
	seedLocal(store, 3, 50, true)
	svc := newTestService(t, store, &recorder{})
	ctx := context.Background()
	pending := submitPending(t, svc, store)

	// The pending hold blocks the window.
	_, err := svc.Submit(ctx, other, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10), EndsAt: tomorrowAt(11), Participants: 10,
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Decide(ctx, admin, pending.ID, false, "room needed")
	require.NoError(t, err)

	rebooked, err := svc.Submit(ctx, other, SubmitInput{
		LocalID: 3, StartsAt: tomorrowAt(10), EndsAt: tomorrowAt(11), Participants: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, rebooked.Status)
}
