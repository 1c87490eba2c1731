package model

import "time"

// UserRole distinguishes regular users from administrators.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User represents an authenticated institutional account. Rows are created
// the first time a principal is seen and are never deleted, only deactivated.
type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:256;not null" json:"email"`
	Role      UserRole  `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	Reservations []Reservation `gorm:"foreignKey:UserID" json:"-"`
}
