package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TimeCategory classifies time entries (e.g. "Development", "Meetings")
type TimeCategory struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:500" json:"description,omitempty"`
	Color       string `gorm:"size:7" json:"color,omitempty"` // #RGB or #RRGGBB
	Active      bool   `gorm:"not null" json:"active"`
}

// BeforeCreate assigns an identifier when the caller did not
func (c *TimeCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
