package model

import (
	"strings"
	"time"
)

// Local represents a bookable physical room.
type Local struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	SiteID    int64  `gorm:"index;not null" json:"site_id"`
	Name      string `gorm:"size:128;not null" json:"name"`
	Capacity  int    `gorm:"not null" json:"capacity"`
	Equipment string `gorm:"size:512" json:"-"` // Comma-joined tag list
	Available bool   `gorm:"not null;default:true" json:"available"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	Site Site `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// EquipmentTags returns the equipment column split into individual tags.
func (l *Local) EquipmentTags() []string {
	if l.Equipment == "" {
		return nil
	}
	parts := strings.Split(l.Equipment, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// SetEquipmentTags stores the given tags in the comma-joined equipment column.
func (l *Local) SetEquipmentTags(tags []string) {
	l.Equipment = strings.Join(tags, ",")
}
