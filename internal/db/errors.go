package db

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/balkashynov/tally/internal/models"
)

// Domain error kinds. Each is returned wrapped with detail; match with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSessionAlreadyActive   = errors.New("tracking session already active")
	ErrSessionNotFound        = errors.New("tracking session not found")
	ErrOverlapConflict        = errors.New("time range overlaps an existing record")
	ErrEntryLocked            = errors.New("time entry is locked")
	ErrTimesheetLocked        = errors.New("timesheet is locked")
	ErrEmptyTimesheet         = errors.New("timesheet has no entries")
	ErrNotFound               = errors.New("not found")
)

// ErrStorage marks infrastructure failures. It never matches a domain kind.
var ErrStorage = errors.New("storage failure")

var domainKinds = []error{
	ErrValidation,
	ErrInvalidStateTransition,
	ErrSessionAlreadyActive,
	ErrSessionNotFound,
	ErrOverlapConflict,
	ErrEntryLocked,
	ErrTimesheetLocked,
	ErrEmptyTimesheet,
	ErrNotFound,
}

// ValidationError lists every rule an input broke
type ValidationError struct {
	Violations []models.Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsDomain reports whether err is an expected, typed outcome rather than an infrastructure failure.
func IsDomain(err error) bool {
	if err == nil || errors.Is(err, ErrStorage) {
		return false
	}
	for _, kind := range domainKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// invalid returns nil when there are no violations
func invalid(vs []models.Violation) error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

func invalidField(field, format string, args ...any) error {
	return &ValidationError{Violations: []models.Violation{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// storageErr wraps an unexpected database error
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// lookupErr turns a missing row into kind and anything else into a storage failure
func lookupErr(err error, kind error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", kind, what)
	}
	return storageErr("get "+what, err)
}

// isUniqueViolation matches both GORM's translated error and the raw SQLite message
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// passThrough keeps domain errors from a transaction body intact and wraps the rest
func passThrough(op string, err error) error {
	if err == nil || IsDomain(err) || errors.Is(err, ErrStorage) {
		return err
	}
	return storageErr(op, err)
}
