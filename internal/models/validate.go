package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Field length limits
const (
	MaxCategoryNameLen = 100
	MaxDescriptionLen  = 500
	MaxNotesLen        = 1000
	MaxPageSize        = 100
)

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Violation is one failed input rule
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// violations accumulates failed rules for one input
type violations []Violation

func (vs *violations) add(field, format string, args ...any) {
	*vs = append(*vs, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (vs *violations) requireID(field string, id uuid.UUID) {
	if id == uuid.Nil {
		vs.add(field, "is required")
	}
}

func (vs *violations) optionalID(field string, id *uuid.UUID) {
	if id != nil && *id == uuid.Nil {
		vs.add(field, "must not be empty when set")
	}
}

func (vs *violations) maxLen(field, value string, limit int) {
	if utf8.RuneCountInString(value) > limit {
		vs.add(field, "must be at most %d characters", limit)
	}
}

// ============================================================
// Categories
// ============================================================

// CategoryInput holds the data needed to create a time category
type CategoryInput struct {
	Name        string
	Description string
	Color       string
}

// Validate checks required fields, lengths and the color pattern.
func (in CategoryInput) Validate() []Violation {
	var vs violations
	if strings.TrimSpace(in.Name) == "" {
		vs.add("name", "is required")
	}
	vs.maxLen("name", in.Name, MaxCategoryNameLen)
	vs.maxLen("description", in.Description, MaxDescriptionLen)
	if in.Color != "" && !colorPattern.MatchString(in.Color) {
		vs.add("color", "must be a hex color like #RGB or #RRGGBB")
	}
	return vs
}

// CategoryPatch changes the fields that are set
type CategoryPatch struct {
	Name        *string
	Description *string
	Color       *string
	Active      *bool
}

// Apply copies the set fields onto c.
func (p CategoryPatch) Apply(c *TimeCategory) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
}

// ============================================================
// Time entries
// ============================================================

// EntryInput holds the data needed to create a time entry
type EntryInput struct {
	UserID      uuid.UUID
	StartTime   time.Time
	EndTime     *time.Time
	Description string
	ProjectID   *uuid.UUID
	TaskID      *uuid.UUID
	CategoryID  uuid.UUID
	TimesheetID *uuid.UUID
}

// Validate checks required fields, optional identifiers and the start/end ordering.
func (in EntryInput) Validate() []Violation {
	var vs violations
	vs.requireID("user_id", in.UserID)
	if in.StartTime.IsZero() {
		vs.add("start_time", "is required")
	}
	if in.EndTime != nil && !in.StartTime.IsZero() && !in.EndTime.After(in.StartTime) {
		vs.add("end_time", "must be after start_time")
	}
	vs.maxLen("description", in.Description, MaxDescriptionLen)
	vs.optionalID("project_id", in.ProjectID)
	vs.optionalID("task_id", in.TaskID)
	vs.requireID("category_id", in.CategoryID)
	vs.optionalID("timesheet_id", in.TimesheetID)
	return vs
}

// EntryInputOf returns the input that would produce e, used to re-validate patched entries.
func EntryInputOf(e TimeEntry) EntryInput {
	return EntryInput{
		UserID:      e.UserID,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Description: e.Description,
		ProjectID:   e.ProjectID,
		TaskID:      e.TaskID,
		CategoryID:  e.CategoryID,
		TimesheetID: e.TimesheetID,
	}
}

// EntryPatch changes the fields that are set. The Clear* flags null optional fields.
type EntryPatch struct {
	StartTime   *time.Time
	EndTime     *time.Time
	Description *string
	ProjectID   *uuid.UUID
	TaskID      *uuid.UUID
	CategoryID  *uuid.UUID
	TimesheetID *uuid.UUID

	ClearEndTime   bool
	ClearProject   bool
	ClearTask      bool
	ClearTimesheet bool
}

// Apply copies the set fields onto e.
func (p EntryPatch) Apply(e *TimeEntry) {
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.ClearEndTime {
		e.EndTime = nil
	} else if p.EndTime != nil {
		end := *p.EndTime
		e.EndTime = &end
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.ClearProject {
		e.ProjectID = nil
	} else if p.ProjectID != nil {
		id := *p.ProjectID
		e.ProjectID = &id
	}
	if p.ClearTask {
		e.TaskID = nil
	} else if p.TaskID != nil {
		id := *p.TaskID
		e.TaskID = &id
	}
	if p.CategoryID != nil {
		e.CategoryID = *p.CategoryID
	}
	if p.ClearTimesheet {
		e.TimesheetID = nil
	} else if p.TimesheetID != nil {
		id := *p.TimesheetID
		e.TimesheetID = &id
	}
}

// ============================================================
// Tracking sessions
// ============================================================

// StartSessionInput holds the data needed to start tracking
type StartSessionInput struct {
	UserID      uuid.UUID
	CategoryID  uuid.UUID
	ProjectID   *uuid.UUID
	TaskID      *uuid.UUID
	Description string
}

// Validate checks required identifiers and the description length.
func (in StartSessionInput) Validate() []Violation {
	var vs violations
	vs.requireID("user_id", in.UserID)
	vs.requireID("category_id", in.CategoryID)
	vs.optionalID("project_id", in.ProjectID)
	vs.optionalID("task_id", in.TaskID)
	vs.maxLen("description", in.Description, MaxDescriptionLen)
	return vs
}

// SessionPatch changes the descriptive fields of a live session
type SessionPatch struct {
	CategoryID  *uuid.UUID
	ProjectID   *uuid.UUID
	TaskID      *uuid.UUID
	Description *string

	ClearProject bool
	ClearTask    bool
}

// Apply copies the set fields onto s.
func (p SessionPatch) Apply(s *TrackingSession) {
	if p.CategoryID != nil {
		s.CategoryID = *p.CategoryID
	}
	if p.ClearProject {
		s.ProjectID = nil
	} else if p.ProjectID != nil {
		id := *p.ProjectID
		s.ProjectID = &id
	}
	if p.ClearTask {
		s.TaskID = nil
	} else if p.TaskID != nil {
		id := *p.TaskID
		s.TaskID = &id
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
}

// ============================================================
// Timesheets
// ============================================================

// TimesheetInput holds the data needed to open a timesheet
type TimesheetInput struct {
	UserID    uuid.UUID
	StartDate time.Time
	EndDate   time.Time
}

// Validate checks the owner and that the end date is strictly after the start date.
func (in TimesheetInput) Validate() []Violation {
	var vs violations
	vs.requireID("user_id", in.UserID)
	if in.StartDate.IsZero() {
		vs.add("start_date", "is required")
	}
	if in.EndDate.IsZero() {
		vs.add("end_date", "is required")
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && !DateOf(in.EndDate).After(DateOf(in.StartDate)) {
		vs.add("end_date", "must be after start_date")
	}
	return vs
}

// TimesheetPatch moves the period of an editable timesheet
type TimesheetPatch struct {
	StartDate *time.Time
	EndDate   *time.Time
}

// ReviewInput is the approver's decision payload
type ReviewInput struct {
	ApproverID uuid.UUID
	Notes      string
}

// Validate checks the approver and the notes length.
func (in ReviewInput) Validate() []Violation {
	var vs violations
	vs.requireID("approver_id", in.ApproverID)
	vs.maxLen("notes", in.Notes, MaxNotesLen)
	return vs
}

// ============================================================
// Ranges and pagination
// ============================================================

// ValidateRange checks a report range: end may equal start.
func ValidateRange(start, end time.Time) []Violation {
	var vs violations
	if start.IsZero() {
		vs.add("start", "is required")
	}
	if end.IsZero() {
		vs.add("end", "is required")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		vs.add("end", "must not be before start")
	}
	return vs
}

// Page selects a window of a list result. Number starts at 1.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"size"`
}

// DefaultPage is the first page of 20 items.
var DefaultPage = Page{Number: 1, Size: 20}

// Validate checks page > 0 and size in (0, MaxPageSize].
func (p Page) Validate() []Violation {
	var vs violations
	if p.Number <= 0 {
		vs.add("page", "must be greater than 0")
	}
	if p.Size <= 0 || p.Size > MaxPageSize {
		vs.add("size", "must be between 1 and %d", MaxPageSize)
	}
	return vs
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageResult is one page of a list together with the unpaged total
type PageResult[T any] struct {
	Items []T   `json:"items" yaml:"items"`
	Total int64 `json:"total" yaml:"total"`
	Page  int   `json:"page" yaml:"page"`
	Size  int   `json:"size" yaml:"size"`
}
