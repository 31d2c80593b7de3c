package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Timesheet groups a user's entries for a period and carries them through approval.
// Entries point at the timesheet; the timesheet holds no entry list.
type Timesheet struct {
	ID        uuid.UUID      `gorm:"type:text;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"archived_at,omitempty"` // only approved timesheets are archived

	UserID    uuid.UUID       `gorm:"type:text;not null;index" json:"user_id"`
	StartDate time.Time       `gorm:"not null" json:"start_date"`
	EndDate   time.Time       `gorm:"not null" json:"end_date"` // inclusive day
	Status    TimesheetStatus `gorm:"size:16;not null;index" json:"status"`

	ApprovalNotes string     `gorm:"size:1000" json:"approval_notes,omitempty"`
	ApproverID    *uuid.UUID `gorm:"type:text" json:"approver_id,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
}

// BeforeCreate assigns an identifier when the caller did not
func (t *Timesheet) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// PeriodStart is the first instant covered by the timesheet.
func (t Timesheet) PeriodStart() time.Time {
	return t.StartDate
}

// PeriodEnd is the first instant after the timesheet, i.e. midnight after EndDate.
func (t Timesheet) PeriodEnd() time.Time {
	return t.EndDate.AddDate(0, 0, 1)
}

// Covers reports whether an instant falls inside the timesheet period.
func (t Timesheet) Covers(at time.Time) bool {
	return !at.Before(t.PeriodStart()) && at.Before(t.PeriodEnd())
}

// TimesheetTransition is one row of a timesheet's workflow history
type TimesheetTransition struct {
	ID          uuid.UUID       `gorm:"type:text;primaryKey" json:"id"`
	TimesheetID uuid.UUID       `gorm:"type:text;not null;index" json:"timesheet_id"`
	Action      TimesheetAction `gorm:"size:16;not null" json:"action"`
	From        TimesheetStatus `gorm:"column:from_status;size:16;not null" json:"from"`
	To          TimesheetStatus `gorm:"column:to_status;size:16;not null" json:"to"`
	ActorID     *uuid.UUID      `gorm:"type:text" json:"actor_id,omitempty"`
	Notes       string          `gorm:"size:1000" json:"notes,omitempty"`
	At          time.Time       `gorm:"not null" json:"at"`
}

// BeforeCreate assigns an identifier when the caller did not
func (t *TimesheetTransition) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// DateOf truncates t to midnight UTC of its own calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
