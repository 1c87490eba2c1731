package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reservation-backend/internal/booking"
	"reservation-backend/internal/model"
)

// Store defines the database operations used across the application. It is a
// superset of the engine's booking.Store contract, adding what the boundary
// handlers need (user upsert, catalog guards).
type Store interface {
	booking.Store
	DB() *gorm.DB
	UpsertUser(ctx context.Context, email string, role model.UserRole) (*model.User, error)
	HasActiveReservationsForLocal(ctx context.Context, localID int64) (bool, error)
}

// gormStore implements the Store interface using GORM. A mutex per local ID
// serializes the conflict recheck and insert for that local; distinct locals
// never contend.
type gormStore struct {
	db *gorm.DB

	mu         sync.Mutex
	localLocks map[int64]*sync.Mutex
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		db:         db,
		localLocks: make(map[int64]*sync.Mutex),
	}
}

// DB exposes the underlying handle for read-only boundary queries.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) localLock(localID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.localLocks[localID]
	if !ok {
		lock = &sync.Mutex{}
		s.localLocks[localID] = lock
	}
	return lock
}

// UpsertUser creates the user row on first authentication and keeps the role
// from the identity provider current afterwards.
func (s *gormStore) UpsertUser(ctx context.Context, email string, role model.UserRole) (*model.User, error) {
	user := model.User{Email: email, Role: role, Active: true}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user %q: %w", email, err)
	}

	// Re-read so callers see the canonical row, including the active flag.
	var persisted model.User
	if err := s.db.WithContext(ctx).First(&persisted, "email = ?", email).Error; err != nil {
		return nil, fmt.Errorf("fetch user %q after upsert: %w", email, err)
	}
	return &persisted, nil
}

// GetLocal returns the local by id, or booking.ErrNotFound.
func (s *gormStore) GetLocal(ctx context.Context, id int64) (*model.Local, error) {
	var local model.Local
	if err := s.db.WithContext(ctx).First(&local, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, booking.ErrNotFound
		}
		return nil, translateErr(err)
	}
	return &local, nil
}

// GetReservation returns the reservation by id, or booking.ErrNotFound.
func (s *gormStore) GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := s.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, booking.ErrNotFound
		}
		return nil, translateErr(err)
	}
	return &reservation, nil
}

// CountActiveReservations counts the user's pending and confirmed
// reservations that have not yet ended. This is the quota denominator.
func (s *gormStore) CountActiveReservations(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("user_id = ? AND status IN ? AND ends_at >= ?", userID, model.ActiveStatuses, now).
		Count(&count).Error
	if err != nil {
		return 0, translateErr(err)
	}
	return count, nil
}

// ActiveReservationsInWindow returns the pending and confirmed reservations
// for the local whose windows intersect [startsAt, endsAt).
func (s *gormStore) ActiveReservationsInWindow(ctx context.Context, localID int64, startsAt, endsAt time.Time, excludeID uuid.UUID) ([]model.Reservation, error) {
	q := s.db.WithContext(ctx).
		Where("local_id = ? AND status IN ? AND starts_at < ? AND ends_at > ?", localID, model.ActiveStatuses, endsAt, startsAt)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}

	var reservations []model.Reservation
	if err := q.Find(&reservations).Error; err != nil {
		return nil, translateErr(err)
	}
	return reservations, nil
}

// CreateReservationChecked inserts the reservation after re-running the
// conflict check against committed rows, all under the local's lock and one
// transaction. The first writer to commit wins; the loser gets ErrConflict.
func (s *gormStore) CreateReservationChecked(ctx context.Context, r *model.Reservation) error {
	lock := s.localLock(r.LocalID)
	lock.Lock()
	defer lock.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Reservation{}).
			Where("local_id = ? AND status IN ? AND starts_at < ? AND ends_at > ?",
				r.LocalID, model.ActiveStatuses, r.EndsAt, r.StartsAt).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return booking.ErrConflict
		}
		return tx.Create(r).Error
	})
	return translateErr(err)
}

// UpdateReservationStatus applies the updates only if the row is still in one
// of the expected states. Returns false when a concurrent transition won.
func (s *gormStore) UpdateReservationStatus(ctx context.Context, id uuid.UUID, from []model.ReservationStatus, updates map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, translateErr(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListHistory projects terminal-state reservations for audit views, ordered
// by decision time descending.
func (s *gormStore) ListHistory(ctx context.Context, f booking.HistoryFilter) ([]model.Reservation, error) {
	q := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("status NOT IN ?", model.ActiveStatuses)

	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.LocalID != nil {
		q = q.Where("local_id = ?", *f.LocalID)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.From != nil {
		q = q.Where("starts_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("ends_at <= ?", *f.To)
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var reservations []model.Reservation
	err := q.Order("decided_at DESC").Limit(limit).Offset(f.Offset).Find(&reservations).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return reservations, nil
}

// ListUserReservations returns every reservation owned by the user, newest
// first.
func (s *gormStore) ListUserReservations(ctx context.Context, userID int64) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reservations).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return reservations, nil
}

// HasActiveReservationsForLocal guards local deletion: a local referenced by
// pending or confirmed reservations must not disappear.
func (s *gormStore) HasActiveReservationsForLocal(ctx context.Context, localID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("local_id = ? AND status IN ?", localID, model.ActiveStatuses).
		Count(&count).Error
	if err != nil {
		return false, translateErr(err)
	}
	return count > 0, nil
}

// translateErr maps driver lock-wait and serialization failures onto the
// retryable booking.ErrBusy; everything else passes through unchanged.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"), // sqlite
		strings.Contains(msg, "SQLITE_BUSY"),
		strings.Contains(msg, "55P03"), // postgres lock_not_available
		strings.Contains(msg, "40001"), // postgres serialization_failure
		strings.Contains(msg, "40P01"): // postgres deadlock_detected
		return fmt.Errorf("%w: %s", booking.ErrBusy, msg)
	}
	return err
}
