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

// TimesheetService groups entries into periods and runs the approval workflow
type TimesheetService struct {
	db    *gorm.DB
	now   func() time.Time
	teams TeamResolver
	log   *slog.Logger
}

// Create opens a Draft timesheet. Periods of one user may not overlap.
func (s *TimesheetService) Create(ctx context.Context, in models.TimesheetInput) (*models.Timesheet, error) {
	if err := invalid(in.Validate()); err != nil {
		return nil, err
	}

	sheet := models.Timesheet{
		UserID:    in.UserID,
		StartDate: models.DateOf(in.StartDate),
		EndDate:   models.DateOf(in.EndDate),
		Status:    models.TimesheetDraft,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkPeriodOverlap(tx, &sheet); err != nil {
			return err
		}
		return tx.Create(&sheet).Error
	})
	if err != nil {
		s.log.Debug("timesheet rejected", "user_id", in.UserID, "error", err)
		return nil, passThrough("create timesheet", err)
	}
	s.log.Info("timesheet created", "timesheet_id", sheet.ID, "user_id", sheet.UserID,
		"start", sheet.StartDate.Format(dateLayout), "end", sheet.EndDate.Format(dateLayout))
	return &sheet, nil
}

// Update moves the period of a Draft or Rejected timesheet. Linked entries must stay inside it.
func (s *TimesheetService) Update(ctx context.Context, id uuid.UUID, patch models.TimesheetPatch) (*models.Timesheet, error) {
	var sheet models.Timesheet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sheet, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrNotFound, fmt.Sprintf("timesheet %s", id))
		}
		if !sheet.Status.Editable() {
			return fmt.Errorf("%w: timesheet %s is %s", ErrTimesheetLocked, id, sheet.Status)
		}

		if patch.StartDate != nil {
			sheet.StartDate = models.DateOf(*patch.StartDate)
		}
		if patch.EndDate != nil {
			sheet.EndDate = models.DateOf(*patch.EndDate)
		}
		in := models.TimesheetInput{UserID: sheet.UserID, StartDate: sheet.StartDate, EndDate: sheet.EndDate}
		if err := invalid(in.Validate()); err != nil {
			return err
		}
		if err := checkPeriodOverlap(tx, &sheet); err != nil {
			return err
		}

		var outside int64
		err := tx.Model(&models.TimeEntry{}).
			Where("timesheet_id = ? AND (start_time < ? OR start_time >= ?)", id, sheet.PeriodStart(), sheet.PeriodEnd()).
			Count(&outside).Error
		if err != nil {
			return err
		}
		if outside > 0 {
			return invalidField("end_date", "%d linked entries would fall outside the new period", outside)
		}
		return tx.Save(&sheet).Error
	})
	if err != nil {
		return nil, passThrough("update timesheet", err)
	}
	return &sheet, nil
}

// Delete removes a Draft timesheet for good and unlinks its entries
func (s *TimesheetService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sheet models.Timesheet
		if err := tx.First(&sheet, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrNotFound, fmt.Sprintf("timesheet %s", id))
		}
		if sheet.Status != models.TimesheetDraft {
			return fmt.Errorf("%w: only draft timesheets can be deleted, %s is %s", ErrTimesheetLocked, id, sheet.Status)
		}
		if err := tx.Model(&models.TimeEntry{}).Where("timesheet_id = ?", id).Update("timesheet_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("timesheet_id = ?", id).Delete(&models.TimesheetTransition{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&sheet).Error
	})
	if err != nil {
		return passThrough("delete timesheet", err)
	}
	s.log.Info("timesheet deleted", "timesheet_id", id)
	return nil
}

// Get returns one timesheet, archived ones included
func (s *TimesheetService) Get(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	var sheet models.Timesheet
	if err := s.db.WithContext(ctx).Unscoped().First(&sheet, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, ErrNotFound, fmt.Sprintf("timesheet %s", id))
	}
	return &sheet, nil
}

// Collect links the owner's unlinked entries that start inside the period and
// returns how many were linked.
func (s *TimesheetService) Collect(ctx context.Context, id uuid.UUID) (int64, error) {
	var linked int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sheet models.Timesheet
		if err := tx.First(&sheet, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrNotFound, fmt.Sprintf("timesheet %s", id))
		}
		if !sheet.Status.Editable() {
			return fmt.Errorf("%w: timesheet %s is %s", ErrTimesheetLocked, id, sheet.Status)
		}
		res := tx.Model(&models.TimeEntry{}).
			Where("user_id = ? AND timesheet_id IS NULL AND start_time >= ? AND start_time < ?",
				sheet.UserID, sheet.PeriodStart(), sheet.PeriodEnd()).
			Update("timesheet_id", sheet.ID)
		linked = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, passThrough("collect entries", err)
	}
	s.log.Info("entries collected", "timesheet_id", id, "linked", linked)
	return linked, nil
}

// Submit hands a Draft timesheet to approval and locks its entries in the same transaction
func (s *TimesheetService) Submit(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	return s.transition(ctx, id, models.ActionSubmit, nil, "", func(tx *gorm.DB, sheet *models.Timesheet, now time.Time) error {
		var linked, open int64
		if err := tx.Model(&models.TimeEntry{}).Where("timesheet_id = ?", sheet.ID).Count(&linked).Error; err != nil {
			return err
		}
		if linked == 0 {
			return fmt.Errorf("%w: timesheet %s", ErrEmptyTimesheet, sheet.ID)
		}
		if err := tx.Model(&models.TimeEntry{}).Where("timesheet_id = ? AND end_time IS NULL", sheet.ID).Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return invalidField("entries", "%d linked entries have no end time", open)
		}
		sheet.SubmittedAt = &now
		return nil
	})
}

// Approve accepts a Submitted timesheet. Its entries stay frozen for good.
func (s *TimesheetService) Approve(ctx context.Context, id uuid.UUID, review models.ReviewInput) (*models.Timesheet, error) {
	if err := invalid(review.Validate()); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.ActionApprove, &review.ApproverID, review.Notes, func(_ *gorm.DB, sheet *models.Timesheet, now time.Time) error {
		sheet.ApproverID = &review.ApproverID
		sheet.ApprovalNotes = review.Notes
		sheet.ApprovedAt = &now
		return nil
	})
}

// Reject sends a Submitted timesheet back. Its entries become editable again.
func (s *TimesheetService) Reject(ctx context.Context, id uuid.UUID, review models.ReviewInput) (*models.Timesheet, error) {
	if err := invalid(review.Validate()); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.ActionReject, &review.ApproverID, review.Notes, func(_ *gorm.DB, sheet *models.Timesheet, now time.Time) error {
		sheet.ApproverID = &review.ApproverID
		sheet.ApprovalNotes = review.Notes
		sheet.RejectedAt = &now
		return nil
	})
}

// Reopen returns a Rejected timesheet to Draft so it can be resubmitted
func (s *TimesheetService) Reopen(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	return s.transition(ctx, id, models.ActionReopen, nil, "", func(*gorm.DB, *models.Timesheet, time.Time) error {
		return nil
	})
}

// transition is the single place a timesheet changes status. Anything the
// transition table does not list fails with ErrInvalidStateTransition and
// leaves the row untouched.
func (s *TimesheetService) transition(ctx context.Context, id uuid.UUID, action models.TimesheetAction, actor *uuid.UUID, notes string,
	mutate func(tx *gorm.DB, sheet *models.Timesheet, now time.Time) error) (*models.Timesheet, error) {

	var sheet models.Timesheet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sheet, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrNotFound, fmt.Sprintf("timesheet %s", id))
		}
		from := sheet.Status
		next, ok := models.TimesheetMachine.Next(from, action)
		if !ok {
			return fmt.Errorf("%w: cannot %s a %s timesheet", ErrInvalidStateTransition, action, from)
		}

		now := s.now()
		if err := mutate(tx, &sheet, now); err != nil {
			return err
		}
		sheet.Status = next
		if err := tx.Save(&sheet).Error; err != nil {
			return err
		}
		return tx.Create(&models.TimesheetTransition{
			TimesheetID: sheet.ID,
			Action:      action,
			From:        from,
			To:          next,
			ActorID:     actor,
			Notes:       notes,
			At:          now,
		}).Error
	})
	if err != nil {
		s.log.Debug("timesheet "+string(action)+" rejected", "timesheet_id", id, "error", err)
		return nil, passThrough(string(action)+" timesheet", err)
	}
	s.log.Info("timesheet transition", "timesheet_id", id, "action", action, "status", sheet.Status)
	return &sheet, nil
}

// Archive hides an Approved timesheet from listings. The row is kept.
func (s *TimesheetService) Archive(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sheet models.Timesheet
		if err := tx.First(&sheet, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrNotFound, fmt.Sprintf("timesheet %s", id))
		}
		if sheet.Status != models.TimesheetApproved {
			return fmt.Errorf("%w: cannot archive a %s timesheet", ErrInvalidStateTransition, sheet.Status)
		}
		return tx.Delete(&sheet).Error
	})
	if err != nil {
		return passThrough("archive timesheet", err)
	}
	s.log.Info("timesheet archived", "timesheet_id", id)
	return nil
}

// History returns the workflow log of a timesheet, oldest first
func (s *TimesheetService) History(ctx context.Context, id uuid.UUID) ([]models.TimesheetTransition, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	transitions := []models.TimesheetTransition{}
	if err := s.db.WithContext(ctx).Where("timesheet_id = ?", id).Order("at").Order("rowid").Find(&transitions).Error; err != nil {
		return nil, storageErr("timesheet history", err)
	}
	return transitions, nil
}

// ListByUser returns a user's timesheets, newest period first
func (s *TimesheetService) ListByUser(ctx context.Context, userID uuid.UUID, page models.Page) (models.PageResult[models.Timesheet], error) {
	return listPage[models.Timesheet](ctx, s.db, "list timesheets", page, "start_date DESC", func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ?", userID)
	})
}

// ListByUserAndRange returns the user's timesheets whose period shares a day with [start, end],
// earliest period first
func (s *TimesheetService) ListByUserAndRange(ctx context.Context, userID uuid.UUID, start, end time.Time, page models.Page) (models.PageResult[models.Timesheet], error) {
	if err := invalid(models.ValidateRange(start, end)); err != nil {
		return models.PageResult[models.Timesheet]{Page: page.Number, Size: page.Size}, err
	}
	return listPage[models.Timesheet](ctx, s.db, "list timesheets in range", page, "start_date, id", func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND start_date <= ? AND end_date >= ?", userID, models.DateOf(end), models.DateOf(start))
	})
}

// ListByStatus returns timesheets in one workflow status
func (s *TimesheetService) ListByStatus(ctx context.Context, status models.TimesheetStatus, page models.Page) (models.PageResult[models.Timesheet], error) {
	if !status.Valid() {
		return models.PageResult[models.Timesheet]{Page: page.Number, Size: page.Size},
			invalidField("status", "unknown status %q", status)
	}
	return listPage[models.Timesheet](ctx, s.db, "list timesheets", page, "start_date DESC", func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ?", status)
	})
}

// ListPendingApprovals returns Submitted timesheets the approver may review: those of
// their team, never their own. Without a team resolver every submitter counts.
func (s *TimesheetService) ListPendingApprovals(ctx context.Context, approverID uuid.UUID, page models.Page) (models.PageResult[models.Timesheet], error) {
	empty := models.PageResult[models.Timesheet]{Page: page.Number, Size: page.Size}
	if approverID == uuid.Nil {
		return empty, invalidField("approver_id", "is required")
	}

	var members []uuid.UUID
	if s.teams != nil {
		team, err := s.teams.Members(ctx, approverID)
		if err != nil {
			return empty, storageErr("resolve team", err)
		}
		for _, m := range team {
			if m != approverID {
				members = append(members, m)
			}
		}
		if len(members) == 0 {
			return empty, invalid(page.Validate())
		}
	}

	return listPage[models.Timesheet](ctx, s.db, "list pending approvals", page, "submitted_at, id", func(q *gorm.DB) *gorm.DB {
		q = q.Where("status = ? AND user_id <> ?", models.TimesheetSubmitted, approverID)
		if members != nil {
			q = q.Where("user_id IN ?", members)
		}
		return q
	})
}

// checkPeriodOverlap rejects a period sharing a day with another live timesheet of the same user
func checkPeriodOverlap(tx *gorm.DB, sheet *models.Timesheet) error {
	q := tx.Model(&models.Timesheet{}).
		Where("user_id = ? AND start_date <= ? AND end_date >= ?", sheet.UserID, sheet.EndDate, sheet.StartDate)
	if sheet.ID != uuid.Nil {
		q = q.Where("id <> ?", sheet.ID)
	}
	var clashes []models.Timesheet
	if err := q.Limit(1).Find(&clashes).Error; err != nil {
		return err
	}
	if len(clashes) > 0 {
		c := clashes[0]
		return fmt.Errorf("%w: timesheet %s covers %s - %s", ErrOverlapConflict, c.ID,
			c.StartDate.Format(dateLayout), c.EndDate.Format(dateLayout))
	}
	return nil
}
