package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reservation-backend/config"
	"reservation-backend/internal/model"
)

// Principal is the authenticated identity attached to every request by the
// identity middleware. The engine trusts it.
type Principal struct {
	UserID int64
	Email  string
	Role   model.UserRole
}

// IsAdmin reports whether the principal may perform administrative operations.
func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

// Event is emitted on every reservation state transition. Delivery is
// best-effort and asynchronous; engine correctness does not depend on it.
type Event struct {
	ReservationID uuid.UUID
	Status        model.ReservationStatus
	RecipientID   int64
}

// Dispatcher receives transition events for out-of-band delivery.
type Dispatcher interface {
	Dispatch(Event)
}

// Store captures the persistence interactions the engine needs. Implementations
// must make CreateReservationChecked atomic with respect to concurrent
// submissions on the same local, and UpdateReservationStatus conditional on
// the row still being in one of the expected states.
type Store interface {
	GetLocal(ctx context.Context, id int64) (*model.Local, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	CountActiveReservations(ctx context.Context, userID int64, now time.Time) (int64, error)
	ActiveReservationsInWindow(ctx context.Context, localID int64, startsAt, endsAt time.Time, excludeID uuid.UUID) ([]model.Reservation, error)
	CreateReservationChecked(ctx context.Context, r *model.Reservation) error
	UpdateReservationStatus(ctx context.Context, id uuid.UUID, from []model.ReservationStatus, updates map[string]any) (bool, error)
	ListHistory(ctx context.Context, f HistoryFilter) ([]model.Reservation, error)
	ListUserReservations(ctx context.Context, userID int64) ([]model.Reservation, error)
}

// SubmitInput is a booking request as received from the boundary layer.
type SubmitInput struct {
	LocalID      int64
	StartsAt     time.Time
	EndsAt       time.Time
	Participants int
	EventType    string
}

// HistoryFilter narrows the audit projection over terminal-state reservations.
type HistoryFilter struct {
	LocalID *int64
	UserID  *int64
	Status  *model.ReservationStatus
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// Service is the booking orchestrator: it sequences policy validation,
// conflict detection, approval routing and the persistence commit.
type Service struct {
	store          Store
	notifier       Dispatcher
	policy         Policy
	autoApprove    bool
	cancelDeadline time.Duration
	loc            *time.Location
	now            func() time.Time
}

// NewService wires the orchestrator from the policy configuration.
func NewService(store Store, notifier Dispatcher, cfg *config.PolicyConfig) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid policy timezone %q: %w", cfg.Timezone, err)
	}
	return &Service{
		store: store,
		notifier: notifier,
		policy: Policy{
			AllowedEmailDomains: cfg.AllowedEmailDomains,
			MaxDuration:         cfg.MaxDuration,
			MaxActivePerUser:    cfg.MaxReservationsPerUser,
		},
		autoApprove:    cfg.AutoApprove(),
		cancelDeadline: cfg.CancellationDeadline,
		loc:            loc,
		now:            time.Now,
	}, nil
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit validates and books a reservation. The returned reservation is
// either confirmed (auto-approved) or pending administrative review.
func (s *Service) Submit(ctx context.Context, actor Principal, in SubmitInput) (*model.Reservation, error) {
	if !in.EndsAt.After(in.StartsAt) {
		return nil, ErrInvalidInterval
	}

	local, err := s.store.GetLocal(ctx, in.LocalID)
	if err != nil {
		return nil, err
	}
	if !local.Available {
		return nil, ErrLocalUnavailable
	}

	now := s.now()
	activeCount, err := s.store.CountActiveReservations(ctx, actor.UserID, now)
	if err != nil {
		return nil, err
	}

	candidate := Candidate{
		UserEmail:    actor.Email,
		LocalID:      in.LocalID,
		StartsAt:     in.StartsAt,
		EndsAt:       in.EndsAt,
		Participants: in.Participants,
		EventType:    in.EventType,
	}
	if err := s.policy.Validate(candidate, Snapshot{
		Capacity:    local.Capacity,
		ActiveCount: activeCount,
		Now:         now,
	}); err != nil {
		return nil, err
	}

	conflict, err := s.HasConflict(ctx, in.LocalID, in.StartsAt, in.EndsAt, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrConflict
	}

	reservation := &model.Reservation{
		ID:           uuid.New(),
		UserID:       actor.UserID,
		LocalID:      in.LocalID,
		StartsAt:     in.StartsAt,
		EndsAt:       in.EndsAt,
		Participants: in.Participants,
		EventType:    in.EventType,
		Status:       Classify(in.StartsAt, in.EndsAt, s.loc, s.autoApprove),
	}
	if reservation.Status == model.StatusConfirmed {
		decidedAt := now
		reservation.DecidedAt = &decidedAt
	}

	// The store re-runs the conflict check inside its commit boundary; a
	// concurrent submission that wins the race surfaces here as ErrConflict.
	if err := s.store.CreateReservationChecked(ctx, reservation); err != nil {
		return nil, err
	}

	s.notify(reservation)
	return reservation, nil
}

// Decide applies an administrative approval or rejection to a pending
// reservation. The loser of a concurrent decision gets ErrInvalidTransition.
func (s *Service) Decide(ctx context.Context, actor Principal, id uuid.UUID, approve bool, reason string) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	reservation, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.Status != model.StatusPending {
		return nil, ErrInvalidTransition
	}

	status := model.StatusRefused
	if approve {
		status = model.StatusConfirmed
	}

	updates := map[string]any{
		"status":        status,
		"decided_at":    s.now(),
		"decided_by_id": actor.UserID,
	}
	if reason != "" {
		updates["reason"] = reason
	}

	applied, err := s.store.UpdateReservationStatus(ctx, id, []model.ReservationStatus{model.StatusPending}, updates)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInvalidTransition
	}

	updated, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(updated)
	return updated, nil
}

// Cancel withdraws a pending or confirmed reservation. Owners are held to
// the cancellation deadline; admins may cancel at any time with a reason.
// An admin cancelling their own reservation takes the administrative path
// when a reason is supplied, the owner path otherwise.
func (s *Service) Cancel(ctx context.Context, actor Principal, id uuid.UUID, reason string) (*model.Reservation, error) {
	reservation, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	owner := reservation.UserID == actor.UserID
	if !owner && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !reservation.Status.Active() {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	updates := map[string]any{"decided_at": now}

	if owner && (!actor.IsAdmin() || reason == "") {
		if now.After(reservation.StartsAt.Add(-s.cancelDeadline)) {
			return nil, ErrCancellationTooLate
		}
		updates["status"] = model.StatusCancelledByUser
	} else {
		if reason == "" {
			return nil, ErrReasonRequired
		}
		updates["status"] = model.StatusCancelledByAdmin
		updates["decided_by_id"] = actor.UserID
	}
	if reason != "" {
		updates["reason"] = reason
	}

	applied, err := s.store.UpdateReservationStatus(ctx, id, model.ActiveStatuses, updates)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInvalidTransition
	}

	updated, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(updated)
	return updated, nil
}

// History is the read-only audit projection over terminal-state reservations,
// ordered by decision time descending. Restartable through Limit/Offset.
func (s *Service) History(ctx context.Context, f HistoryFilter) ([]model.Reservation, error) {
	return s.store.ListHistory(ctx, f)
}

// ListMine returns the caller's reservations, newest first.
func (s *Service) ListMine(ctx context.Context, actor Principal) ([]model.Reservation, error) {
	return s.store.ListUserReservations(ctx, actor.UserID)
}

func (s *Service) notify(r *model.Reservation) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(Event{
		ReservationID: r.ID,
		Status:        r.Status,
		RecipientID:   r.UserID,
	})
}
