package model

import "time"

// Site is an administrative grouping of locals, e.g. a campus building.
type Site struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Address   string    `gorm:"size:256" json:"address"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	Locals []Local `gorm:"foreignKey:SiteID" json:"-"`
}
