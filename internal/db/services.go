package db

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/balkashynov/tally/internal/models"
)

// Services bundles the components of the subsystem over one database
type Services struct {
	Categories *CategoryService
	Entries    *EntryService
	Sessions   *SessionService
	Timesheets *TimesheetService
	Reports    *ReportService
}

type options struct {
	now       func() time.Time
	log       *slog.Logger
	teams     TeamResolver
	cacheSize int
	cacheTTL  time.Duration
}

// Option configures NewServices
type Option func(*options)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger for workflow events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTeams wires the team membership collaborator.
func WithTeams(t TeamResolver) Option {
	return func(o *options) { o.teams = t }
}

// WithReportCache caches report results for ttl. A zero ttl disables the cache.
func WithReportCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// NewServices wires every component over gdb
func NewServices(gdb *gorm.DB, opts ...Option) *Services {
	o := options{
		now: time.Now,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	clock := func() time.Time { return normalize(o.now()) }

	return &Services{
		Categories: &CategoryService{db: gdb, log: o.log.With("component", "categories")},
		Entries:    &EntryService{db: gdb, log: o.log.With("component", "entries")},
		Sessions:   &SessionService{db: gdb, now: clock, log: o.log.With("component", "sessions")},
		Timesheets: &TimesheetService{db: gdb, now: clock, teams: o.teams, log: o.log.With("component", "timesheets")},
		Reports:    newReportService(gdb, o.teams, o.cacheSize, o.cacheTTL, o.log.With("component", "reports")),
	}
}

// normalize stores instants in UTC at second precision so SQL comparisons stay ordered
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func normalizePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := normalize(*t)
	return &n
}

// paginate applies a validated page to a query
func paginate(p models.Page) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Offset(p.Offset()).Limit(p.Size)
	}
}

// listPage counts and fetches one page of T matching scope
func listPage[T any](ctx context.Context, gdb *gorm.DB, op string, page models.Page, order string, scope func(*gorm.DB) *gorm.DB) (models.PageResult[T], error) {
	result := models.PageResult[T]{Page: page.Number, Size: page.Size}
	if err := invalid(page.Validate()); err != nil {
		return result, err
	}

	var zero T
	if err := gdb.WithContext(ctx).Model(&zero).Scopes(scope).Count(&result.Total).Error; err != nil {
		return result, storageErr(op, err)
	}
	items := []T{}
	if err := gdb.WithContext(ctx).Scopes(scope, paginate(page)).Order(order).Find(&items).Error; err != nil {
		return result, storageErr(op, err)
	}
	result.Items = items
	return result, nil
}
