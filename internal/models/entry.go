package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntrySource records how a time entry came to exist
type EntrySource string

const (
	SourceManual  EntrySource = "manual"
	SourceSession EntrySource = "session"
)

// TimeEntry is a recorded interval of work
type TimeEntry struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID          uuid.UUID   `gorm:"type:text;not null;index:idx_entries_user_start,priority:1" json:"user_id"`
	StartTime       time.Time   `gorm:"not null;index:idx_entries_user_start,priority:2" json:"start_time"`
	EndTime         *time.Time  `json:"end_time,omitempty"` // nil while the entry is still being edited
	DurationSeconds int64       `gorm:"not null;default:0" json:"duration_seconds"`
	Description     string      `gorm:"size:500" json:"description,omitempty"`
	Source          EntrySource `gorm:"size:16;not null" json:"source"`

	// References owned elsewhere; ids only, no navigation properties
	ProjectID   *uuid.UUID `gorm:"type:text;index" json:"project_id,omitempty"`
	TaskID      *uuid.UUID `gorm:"type:text;index" json:"task_id,omitempty"`
	CategoryID  uuid.UUID  `gorm:"type:text;not null;index" json:"category_id"`
	TimesheetID *uuid.UUID `gorm:"type:text;index" json:"timesheet_id,omitempty"`
}

// BeforeCreate assigns an identifier when the caller did not
func (e *TimeEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Bounded reports whether both start and end are set.
func (e TimeEntry) Bounded() bool {
	return e.EndTime != nil
}

// Duration is end - start, zero for an unbounded entry.
func (e TimeEntry) Duration() time.Duration {
	if e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// Overlaps reports whether two bounded entries intersect. Touching bounds do not overlap.
func (e TimeEntry) Overlaps(other TimeEntry) bool {
	if e.EndTime == nil || other.EndTime == nil {
		return false
	}
	return e.StartTime.Before(*other.EndTime) && other.StartTime.Before(*e.EndTime)
}
