package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balkashynov/tally/internal/models"
)

// SessionService runs live tracking sessions, at most one per user
type SessionService struct {
	db  *gorm.DB
	now func() time.Time
	log *slog.Logger
}

// Start opens an Active session for the user.
// The existence check and the insert share a transaction and the unique user index backs it.
func (s *SessionService) Start(ctx context.Context, in models.StartSessionInput) (*models.TrackingSession, error) {
	if err := invalid(in.Validate()); err != nil {
		return nil, err
	}

	session := models.TrackingSession{
		UserID:      in.UserID,
		StartTime:   s.now(),
		State:       models.SessionActive,
		ProjectID:   in.ProjectID,
		TaskID:      in.TaskID,
		CategoryID:  in.CategoryID,
		Description: in.Description,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := activeCategory(tx, in.CategoryID); err != nil {
			return err
		}
		var live []models.TrackingSession
		if err := tx.Select("id", "state").Where("user_id = ?", in.UserID).Limit(1).Find(&live).Error; err != nil {
			return err
		}
		if len(live) > 0 {
			return fmt.Errorf("%w: session %s is %s", ErrSessionAlreadyActive, live[0].ID, live[0].State)
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		if !IsDomain(err) && isUniqueViolation(err) {
			err = fmt.Errorf("%w: user %s", ErrSessionAlreadyActive, in.UserID)
		}
		s.log.Debug("session start rejected", "user_id", in.UserID, "error", err)
		return nil, passThrough("start session", err)
	}
	s.log.Info("session started", "session_id", session.ID, "user_id", session.UserID)
	return &session, nil
}

// Pause stops the clock of an Active session
func (s *SessionService) Pause(ctx context.Context, id uuid.UUID) (*models.TrackingSession, error) {
	return s.step(ctx, id, models.ActionPause, func(_ *gorm.DB, session *models.TrackingSession, now time.Time) error {
		session.PausedAt = &now
		return nil
	})
}

// Resume restarts a Paused session and folds the pause into the accumulated total
func (s *SessionService) Resume(ctx context.Context, id uuid.UUID) (*models.TrackingSession, error) {
	return s.step(ctx, id, models.ActionResume, func(_ *gorm.DB, session *models.TrackingSession, now time.Time) error {
		session.PausedSeconds = int64(session.PausedAsOf(now) / time.Second)
		session.PausedAt = nil
		return nil
	})
}

// Update changes category, project, task or description of a live session
func (s *SessionService) Update(ctx context.Context, id uuid.UUID, patch models.SessionPatch) (*models.TrackingSession, error) {
	return s.step(ctx, id, models.ActionUpdate, func(tx *gorm.DB, session *models.TrackingSession, _ time.Time) error {
		before := session.CategoryID
		patch.Apply(session)
		in := models.StartSessionInput{
			UserID:      session.UserID,
			CategoryID:  session.CategoryID,
			ProjectID:   session.ProjectID,
			TaskID:      session.TaskID,
			Description: session.Description,
		}
		if err := invalid(in.Validate()); err != nil {
			return err
		}
		if session.CategoryID != before {
			return activeCategory(tx, session.CategoryID)
		}
		return nil
	})
}

// step loads a session, checks the transition table and saves the mutated session
func (s *SessionService) step(ctx context.Context, id uuid.UUID, action models.SessionAction,
	mutate func(tx *gorm.DB, session *models.TrackingSession, now time.Time) error) (*models.TrackingSession, error) {

	var session models.TrackingSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&session, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrSessionNotFound, fmt.Sprintf("session %s", id))
		}
		next, ok := models.SessionMachine.Next(session.State, action)
		if !ok {
			return fmt.Errorf("%w: cannot %s a %s session", ErrInvalidStateTransition, action, session.State)
		}
		if err := mutate(tx, &session, s.now()); err != nil {
			return err
		}
		session.State = next
		return tx.Save(&session).Error
	})
	if err != nil {
		s.log.Debug("session "+string(action)+" rejected", "session_id", id, "error", err)
		return nil, passThrough(string(action)+" session", err)
	}
	if action != models.ActionUpdate {
		s.log.Info("session "+string(action)+"d", "session_id", id, "state", session.State)
	}
	return &session, nil
}

// Stop turns the session into a time entry and removes it, atomically.
// The entry keeps the session start and ends at now minus the paused time, so its
// duration is the tracked time. A nil description keeps the session's.
// A session with less than a second of tracked time, including one paused for its
// whole life, is rejected with ErrValidation and left in place; use Discard to drop it.
func (s *SessionService) Stop(ctx context.Context, id uuid.UUID, description *string) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.TrackingSession
		if err := tx.First(&session, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrSessionNotFound, fmt.Sprintf("session %s", id))
		}
		if !models.SessionMachine.Allows(session.State, models.ActionStop) {
			return fmt.Errorf("%w: cannot stop a %s session", ErrInvalidStateTransition, session.State)
		}

		now := s.now()
		end := now.Add(-session.PausedAsOf(now))
		if !end.After(session.StartTime) {
			return invalidField("duration", "session has tracked less than a second, discard it instead")
		}

		entry = models.TimeEntry{
			UserID:      session.UserID,
			StartTime:   session.StartTime,
			EndTime:     &end,
			Description: session.Description,
			Source:      models.SourceSession,
			ProjectID:   session.ProjectID,
			TaskID:      session.TaskID,
			CategoryID:  session.CategoryID,
		}
		if description != nil {
			entry.Description = *description
		}
		if err := insertEntry(tx, &entry, false); err != nil {
			return err
		}
		return tx.Delete(&session).Error
	})
	if err != nil {
		s.log.Debug("session stop rejected", "session_id", id, "error", err)
		return nil, passThrough("stop session", err)
	}
	s.log.Info("session stopped", "session_id", id, "entry_id", entry.ID, "duration", entry.Duration())
	return &entry, nil
}

// Discard drops a live session without recording any time
func (s *SessionService) Discard(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.TrackingSession{})
	if res.Error != nil {
		return storageErr("discard session", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: session %s", ErrSessionNotFound, id)
	}
	s.log.Info("session discarded", "session_id", id)
	return nil
}

// Get returns one live session
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*models.TrackingSession, error) {
	var session models.TrackingSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, ErrSessionNotFound, fmt.Sprintf("session %s", id))
	}
	return &session, nil
}

// GetActiveByUser returns the user's Active or Paused session
func (s *SessionService) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.TrackingSession, error) {
	var session models.TrackingSession
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no live session for user %s", ErrSessionNotFound, userID)
	}
	if err != nil {
		return nil, storageErr("get active session", err)
	}
	return &session, nil
}

// ListByUser returns the user's live sessions. There is at most one.
func (s *SessionService) ListByUser(ctx context.Context, userID uuid.UUID, page models.Page) (models.PageResult[models.TrackingSession], error) {
	return listPage[models.TrackingSession](ctx, s.db, "list sessions", page, "start_time DESC", func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ?", userID)
	})
}
