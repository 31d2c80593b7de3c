package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balkashynov/tally/internal/models"
)

// EntryService is the time entry store
type EntryService struct {
	db  *gorm.DB
	log *slog.Logger
}

// EntryFilter narrows entry listings. Unset fields do not filter.
type EntryFilter struct {
	UserID      *uuid.UUID
	ProjectID   *uuid.UUID
	TaskID      *uuid.UUID
	TimesheetID *uuid.UUID
	From        *time.Time // start_time >= From
	To          *time.Time // start_time < To
	BoundedOnly bool
}

func (f EntryFilter) scope(q *gorm.DB) *gorm.DB {
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	}
	if f.TaskID != nil {
		q = q.Where("task_id = ?", *f.TaskID)
	}
	if f.TimesheetID != nil {
		q = q.Where("timesheet_id = ?", *f.TimesheetID)
	}
	if f.From != nil {
		q = q.Where("start_time >= ?", normalize(*f.From))
	}
	if f.To != nil {
		q = q.Where("start_time < ?", normalize(*f.To))
	}
	if f.BoundedOnly {
		q = q.Where("end_time IS NOT NULL")
	}
	return q
}

// Create records a manual time entry
func (s *EntryService) Create(ctx context.Context, in models.EntryInput) (*models.TimeEntry, error) {
	entry := models.TimeEntry{
		UserID:      in.UserID,
		StartTime:   normalize(in.StartTime),
		EndTime:     normalizePtr(in.EndTime),
		Description: in.Description,
		Source:      models.SourceManual,
		ProjectID:   in.ProjectID,
		TaskID:      in.TaskID,
		CategoryID:  in.CategoryID,
		TimesheetID: in.TimesheetID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertEntry(tx, &entry, true)
	})
	if err != nil {
		s.log.Debug("entry rejected", "user_id", in.UserID, "error", err)
		return nil, passThrough("create entry", err)
	}
	s.log.Info("entry created", "entry_id", entry.ID, "user_id", entry.UserID, "duration", entry.Duration())
	return &entry, nil
}

// insertEntry validates and stores e inside tx. Session stops skip the active-category
// check because the category was checked when the session started.
func insertEntry(tx *gorm.DB, e *models.TimeEntry, checkCategory bool) error {
	if err := invalid(models.EntryInputOf(*e).Validate()); err != nil {
		return err
	}
	if checkCategory {
		if err := activeCategory(tx, e.CategoryID); err != nil {
			return err
		}
	}
	if e.TimesheetID != nil {
		if err := checkLink(tx, e); err != nil {
			return err
		}
	}
	if err := checkOverlap(tx, e); err != nil {
		return err
	}
	e.DurationSeconds = int64(e.Duration() / time.Second)
	return tx.Create(e).Error
}

// Update applies a patch to an entry the owner may still edit
func (s *EntryService) Update(ctx context.Context, id uuid.UUID, patch models.EntryPatch) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrNotFound, fmt.Sprintf("entry %s", id))
		}
		if err := checkUnlocked(tx, &entry); err != nil {
			return err
		}

		before := entry
		patch.Apply(&entry)
		entry.StartTime = normalize(entry.StartTime)
		entry.EndTime = normalizePtr(entry.EndTime)

		if err := invalid(models.EntryInputOf(entry).Validate()); err != nil {
			return err
		}
		if entry.CategoryID != before.CategoryID {
			if err := activeCategory(tx, entry.CategoryID); err != nil {
				return err
			}
		}
		if entry.TimesheetID != nil && (!sameID(entry.TimesheetID, before.TimesheetID) || !entry.StartTime.Equal(before.StartTime)) {
			if err := checkLink(tx, &entry); err != nil {
				return err
			}
		}
		if err := checkOverlap(tx, &entry); err != nil {
			return err
		}
		entry.DurationSeconds = int64(entry.Duration() / time.Second)
		return tx.Save(&entry).Error
	})
	if err != nil {
		s.log.Debug("entry update rejected", "entry_id", id, "error", err)
		return nil, passThrough("update entry", err)
	}
	return &entry, nil
}

// Delete removes an entry that is unlinked or linked to a draft timesheet
func (s *EntryService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.TimeEntry
		if err := tx.First(&entry, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrNotFound, fmt.Sprintf("entry %s", id))
		}
		if err := checkRemovable(tx, &entry); err != nil {
			return err
		}
		return tx.Delete(&entry).Error
	})
	if err != nil {
		return passThrough("delete entry", err)
	}
	s.log.Info("entry deleted", "entry_id", id)
	return nil
}

// Get returns one entry
func (s *EntryService) Get(ctx context.Context, id uuid.UUID) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, ErrNotFound, fmt.Sprintf("entry %s", id))
	}
	return &entry, nil
}

// List returns one page of entries matching f, newest first
func (s *EntryService) List(ctx context.Context, f EntryFilter, page models.Page) (models.PageResult[models.TimeEntry], error) {
	return listPage[models.TimeEntry](ctx, s.db, "list entries", page, "start_time DESC, id", f.scope)
}

// ListByUser returns a user's entries
func (s *EntryService) ListByUser(ctx context.Context, userID uuid.UUID, page models.Page) (models.PageResult[models.TimeEntry], error) {
	return s.List(ctx, EntryFilter{UserID: &userID}, page)
}

// ListByProject returns entries referencing a project
func (s *EntryService) ListByProject(ctx context.Context, projectID uuid.UUID, page models.Page) (models.PageResult[models.TimeEntry], error) {
	return s.List(ctx, EntryFilter{ProjectID: &projectID}, page)
}

// ListByTask returns entries referencing a task
func (s *EntryService) ListByTask(ctx context.Context, taskID uuid.UUID, page models.Page) (models.PageResult[models.TimeEntry], error) {
	return s.List(ctx, EntryFilter{TaskID: &taskID}, page)
}

// ListByTimesheet returns the entries grouped into a timesheet
func (s *EntryService) ListByTimesheet(ctx context.Context, timesheetID uuid.UUID, page models.Page) (models.PageResult[models.TimeEntry], error) {
	return s.List(ctx, EntryFilter{TimesheetID: &timesheetID}, page)
}

// ListByDateRange returns a user's entries starting in [start, end)
func (s *EntryService) ListByDateRange(ctx context.Context, userID uuid.UUID, start, end time.Time, page models.Page) (models.PageResult[models.TimeEntry], error) {
	if err := invalid(models.ValidateRange(start, end)); err != nil {
		return models.PageResult[models.TimeEntry]{Page: page.Number, Size: page.Size}, err
	}
	return s.List(ctx, EntryFilter{UserID: &userID, From: &start, To: &end}, page)
}

// checkOverlap rejects e when it intersects another bounded entry of the same user
func checkOverlap(tx *gorm.DB, e *models.TimeEntry) error {
	if e.EndTime == nil {
		return nil
	}
	q := tx.Model(&models.TimeEntry{}).
		Where("user_id = ? AND end_time IS NOT NULL AND start_time < ? AND end_time > ?", e.UserID, *e.EndTime, e.StartTime)
	if e.ID != uuid.Nil {
		q = q.Where("id <> ?", e.ID)
	}

	var clashes []models.TimeEntry
	if err := q.Limit(1).Find(&clashes).Error; err != nil {
		return err
	}
	if len(clashes) > 0 {
		c := clashes[0]
		return fmt.Errorf("%w: entry %s (%s - %s)", ErrOverlapConflict, c.ID,
			c.StartTime.Format(time.RFC3339), c.EndTime.Format(time.RFC3339))
	}
	return nil
}

// checkUnlocked fails with ErrEntryLocked while e's timesheet is submitted or approved
func checkUnlocked(tx *gorm.DB, e *models.TimeEntry) error {
	return checkLinkedSheet(tx, e, func(s models.TimesheetStatus) bool { return !s.LocksEntries() })
}

// checkRemovable fails with ErrEntryLocked unless e is unlinked or its timesheet is a draft
func checkRemovable(tx *gorm.DB, e *models.TimeEntry) error {
	return checkLinkedSheet(tx, e, models.TimesheetStatus.ReleasesEntries)
}

func checkLinkedSheet(tx *gorm.DB, e *models.TimeEntry, allowed func(models.TimesheetStatus) bool) error {
	if e.TimesheetID == nil {
		return nil
	}
	// archived sheets are soft deleted but still hold their entries
	var sheets []models.Timesheet
	if err := tx.Unscoped().Select("id", "status").Where("id = ?", *e.TimesheetID).Limit(1).Find(&sheets).Error; err != nil {
		return err
	}
	if len(sheets) > 0 && !allowed(sheets[0].Status) {
		return fmt.Errorf("%w: entry %s belongs to %s timesheet %s", ErrEntryLocked, e.ID, sheets[0].Status, sheets[0].ID)
	}
	return nil
}

// checkLink verifies e may be grouped into its timesheet
func checkLink(tx *gorm.DB, e *models.TimeEntry) error {
	var sheet models.Timesheet
	if err := tx.First(&sheet, "id = ?", *e.TimesheetID).Error; err != nil {
		return lookupErr(err, ErrNotFound, fmt.Sprintf("timesheet %s", *e.TimesheetID))
	}
	if sheet.UserID != e.UserID {
		return invalidField("timesheet_id", "timesheet %s belongs to another user", sheet.ID)
	}
	if !sheet.Status.Editable() {
		return fmt.Errorf("%w: timesheet %s is %s", ErrTimesheetLocked, sheet.ID, sheet.Status)
	}
	if !sheet.Covers(e.StartTime) {
		return invalidField("timesheet_id", "entry start %s is outside the timesheet period %s - %s",
			e.StartTime.Format(time.RFC3339), sheet.StartDate.Format(dateLayout), sheet.EndDate.Format(dateLayout))
	}
	return nil
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

const dateLayout = "2006-01-02"
