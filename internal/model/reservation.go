package model

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a reservation. The stored
// values keep the institution's French labels.
type ReservationStatus string

const (
	StatusPending          ReservationStatus = "pending"
	StatusConfirmed        ReservationStatus = "confirmee"
	StatusRefused          ReservationStatus = "refusee"
	StatusCancelledByUser  ReservationStatus = "annulee_utilisateur"
	StatusCancelledByAdmin ReservationStatus = "annulee_admin"
)

// ActiveStatuses are the statuses that hold a slot on a local. A pending
// reservation provisionally reserves its window to prevent races.
var ActiveStatuses = []ReservationStatus{StatusPending, StatusConfirmed}

// Active reports whether the status still holds its time window.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further transition is permitted.
func (s ReservationStatus) Terminal() bool {
	return s == StatusRefused || s == StatusCancelledByUser || s == StatusCancelledByAdmin
}

// Reservation is an exclusive [StartsAt, EndsAt) hold on a local. Rows are
// never deleted; terminal states are retained for audit history.
type Reservation struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       int64             `gorm:"index;not null" json:"user_id"`
	LocalID      int64             `gorm:"index:idx_reservations_local_window;not null" json:"local_id"`
	StartsAt     time.Time         `gorm:"index:idx_reservations_local_window;not null" json:"starts_at"`
	EndsAt       time.Time         `gorm:"not null" json:"ends_at"`
	Participants int               `gorm:"not null" json:"participants"`
	EventType    string            `gorm:"size:128" json:"event_type"`
	Status       ReservationStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	Reason       string            `gorm:"size:512" json:"reason,omitempty"`
	DecidedAt    *time.Time        `json:"decided_at,omitempty"`
	DecidedByID  *int64            `json:"decided_by,omitempty"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`

	// Associations
	User      User  `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Local     Local `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	DecidedBy *User `gorm:"foreignKey:DecidedByID" json:"-"`
}
