package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrackingSession is a live clock for one user, not yet materialized into a TimeEntry
type TrackingSession struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID        uuid.UUID    `gorm:"type:text;not null;uniqueIndex" json:"user_id"` // one live session per user
	StartTime     time.Time    `gorm:"not null" json:"start_time"`
	State         SessionState `gorm:"size:16;not null" json:"state"`
	PausedAt      *time.Time   `json:"paused_at,omitempty"` // set while Paused
	PausedSeconds int64        `gorm:"not null;default:0" json:"paused_seconds"`

	ProjectID   *uuid.UUID `gorm:"type:text" json:"project_id,omitempty"`
	TaskID      *uuid.UUID `gorm:"type:text" json:"task_id,omitempty"`
	CategoryID  uuid.UUID  `gorm:"type:text;not null" json:"category_id"`
	Description string     `gorm:"size:500" json:"description,omitempty"`
}

// BeforeCreate assigns an identifier when the caller did not
func (s *TrackingSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// PausedAsOf returns the total paused time at now, including a pause still open.
func (s TrackingSession) PausedAsOf(now time.Time) time.Duration {
	paused := time.Duration(s.PausedSeconds) * time.Second
	if s.State == SessionPaused && s.PausedAt != nil && now.After(*s.PausedAt) {
		paused += now.Sub(*s.PausedAt)
	}
	return paused
}

// ElapsedAsOf returns wall time since start minus paused time.
func (s TrackingSession) ElapsedAsOf(now time.Time) time.Duration {
	elapsed := now.Sub(s.StartTime) - s.PausedAsOf(now)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
