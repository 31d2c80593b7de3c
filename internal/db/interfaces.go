package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/balkashynov/tally/internal/models"
)

// CategoryRegistry is the time category reference store
type CategoryRegistry interface {
	Create(ctx context.Context, in models.CategoryInput) (*models.TimeCategory, error)
	Update(ctx context.Context, id uuid.UUID, patch models.CategoryPatch) (*models.TimeCategory, error)
	Delete(ctx context.Context, id uuid.UUID) (disabled bool, err error)
	Get(ctx context.Context, id uuid.UUID) (*models.TimeCategory, error)
	ListActive(ctx context.Context) ([]models.TimeCategory, error)
	ListAll(ctx context.Context, page models.Page) (models.PageResult[models.TimeCategory], error)
}

// EntryStore owns time entries
type EntryStore interface {
	Create(ctx context.Context, in models.EntryInput) (*models.TimeEntry, error)
	Update(ctx context.Context, id uuid.UUID, patch models.EntryPatch) (*models.TimeEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.TimeEntry, error)
	List(ctx context.Context, f EntryFilter, page models.Page) (models.PageResult[models.TimeEntry], error)
	ListByUser(ctx context.Context, userID uuid.UUID, page models.Page) (models.PageResult[models.TimeEntry], error)
	ListByProject(ctx context.Context, projectID uuid.UUID, page models.Page) (models.PageResult[models.TimeEntry], error)
	ListByTask(ctx context.Context, taskID uuid.UUID, page models.Page) (models.PageResult[models.TimeEntry], error)
	ListByTimesheet(ctx context.Context, timesheetID uuid.UUID, page models.Page) (models.PageResult[models.TimeEntry], error)
	ListByDateRange(ctx context.Context, userID uuid.UUID, start, end time.Time, page models.Page) (models.PageResult[models.TimeEntry], error)
}

// SessionManager runs the per-user live tracking clock
type SessionManager interface {
	Start(ctx context.Context, in models.StartSessionInput) (*models.TrackingSession, error)
	Pause(ctx context.Context, id uuid.UUID) (*models.TrackingSession, error)
	Resume(ctx context.Context, id uuid.UUID) (*models.TrackingSession, error)
	Update(ctx context.Context, id uuid.UUID, patch models.SessionPatch) (*models.TrackingSession, error)
	Stop(ctx context.Context, id uuid.UUID, description *string) (*models.TimeEntry, error)
	Discard(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.TrackingSession, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.TrackingSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page models.Page) (models.PageResult[models.TrackingSession], error)
}

// WorkflowEngine drives timesheets through approval
type WorkflowEngine interface {
	Create(ctx context.Context, in models.TimesheetInput) (*models.Timesheet, error)
	Update(ctx context.Context, id uuid.UUID, patch models.TimesheetPatch) (*models.Timesheet, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Timesheet, error)
	Collect(ctx context.Context, id uuid.UUID) (int64, error)
	Submit(ctx context.Context, id uuid.UUID) (*models.Timesheet, error)
	Approve(ctx context.Context, id uuid.UUID, review models.ReviewInput) (*models.Timesheet, error)
	Reject(ctx context.Context, id uuid.UUID, review models.ReviewInput) (*models.Timesheet, error)
	Reopen(ctx context.Context, id uuid.UUID) (*models.Timesheet, error)
	Archive(ctx context.Context, id uuid.UUID) error
	History(ctx context.Context, id uuid.UUID) ([]models.TimesheetTransition, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page models.Page) (models.PageResult[models.Timesheet], error)
	ListByUserAndRange(ctx context.Context, userID uuid.UUID, start, end time.Time, page models.Page) (models.PageResult[models.Timesheet], error)
	ListByStatus(ctx context.Context, status models.TimesheetStatus, page models.Page) (models.PageResult[models.Timesheet], error)
	ListPendingApprovals(ctx context.Context, approverID uuid.UUID, page models.Page) (models.PageResult[models.Timesheet], error)
}

// Reporter aggregates recorded time. Every report covers bounded entries whose start
// lies in the half-open range [start, end), so adjacent ranges add up exactly; end must
// not precede start. Each call returns a report the caller owns.
type Reporter interface {
	UserReport(ctx context.Context, userID uuid.UUID, start, end time.Time) (*Report, error)
	TeamReport(ctx context.Context, callerID uuid.UUID, start, end time.Time) (*Report, error)
	ProjectReport(ctx context.Context, projectID uuid.UUID, start, end time.Time) (*Report, error)
}

var (
	_ CategoryRegistry = (*CategoryService)(nil)
	_ EntryStore       = (*EntryService)(nil)
	_ SessionManager   = (*SessionService)(nil)
	_ WorkflowEngine   = (*TimesheetService)(nil)
	_ Reporter         = (*ReportService)(nil)
)
