package db

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/balkashynov/tally/internal/models"
)

// ReportScope names what a report aggregates over
type ReportScope string

const (
	ScopeUser    ReportScope = "user"
	ScopeTeam    ReportScope = "team"
	ScopeProject ReportScope = "project"
)

// NoProject is the bucket key for entries without a project
const NoProject = "-"

const defaultCacheSize = 128

var secondsPerHour = decimal.NewFromInt(3600)

// Bucket is the time recorded under one key
type Bucket struct {
	Key      string          `json:"key" yaml:"key"`
	Label    string          `json:"label" yaml:"label"`
	Duration time.Duration   `json:"duration" yaml:"duration"`
	Hours    decimal.Decimal `json:"hours" yaml:"hours"`
	Entries  int             `json:"entries" yaml:"entries"`
}

// Report is the aggregate of bounded entries starting in [Start, End). Start == End
// is a valid, empty range. Callers wanting whole days pass the midnight after the last day.
type Report struct {
	Scope      ReportScope     `json:"scope" yaml:"scope"`
	ScopeID    uuid.UUID       `json:"scope_id" yaml:"scope_id"`
	Start      time.Time       `json:"start" yaml:"start"`
	End        time.Time       `json:"end" yaml:"end"`
	Total      time.Duration   `json:"total" yaml:"total"`
	TotalHours decimal.Decimal `json:"total_hours" yaml:"total_hours"`
	EntryCount int             `json:"entry_count" yaml:"entry_count"`
	ByCategory []Bucket        `json:"by_category" yaml:"by_category"`
	ByProject  []Bucket        `json:"by_project" yaml:"by_project"`
	ByUser     []Bucket        `json:"by_user" yaml:"by_user"`
	ByDay      []Bucket        `json:"by_day" yaml:"by_day"`
}

// ReportService aggregates stored entries. It never writes.
type ReportService struct {
	db    *gorm.DB
	teams TeamResolver
	cache *expirable.LRU[string, *Report] // nil when disabled
	log   *slog.Logger
}

func newReportService(gdb *gorm.DB, teams TeamResolver, size int, ttl time.Duration, log *slog.Logger) *ReportService {
	s := &ReportService{db: gdb, teams: teams, log: log}
	if ttl > 0 {
		if size <= 0 {
			size = defaultCacheSize
		}
		s.cache = expirable.NewLRU[string, *Report](size, nil, ttl)
	}
	return s
}

// UserReport sums one user's time
func (s *ReportService) UserReport(ctx context.Context, userID uuid.UUID, start, end time.Time) (*Report, error) {
	return s.build(ctx, ScopeUser, userID, start, end, func(q *gorm.DB) (*gorm.DB, error) {
		return q.Where("user_id = ?", userID), nil
	})
}

// TeamReport sums the time of every member of the caller's team, the caller included
func (s *ReportService) TeamReport(ctx context.Context, callerID uuid.UUID, start, end time.Time) (*Report, error) {
	return s.build(ctx, ScopeTeam, callerID, start, end, func(q *gorm.DB) (*gorm.DB, error) {
		members := []uuid.UUID{callerID}
		if s.teams != nil {
			team, err := s.teams.Members(ctx, callerID)
			if err != nil {
				return nil, storageErr("resolve team", err)
			}
			members = team
		}
		return q.Where("user_id IN ?", members), nil
	})
}

// ProjectReport sums the time booked on one project
func (s *ReportService) ProjectReport(ctx context.Context, projectID uuid.UUID, start, end time.Time) (*Report, error) {
	return s.build(ctx, ScopeProject, projectID, start, end, func(q *gorm.DB) (*gorm.DB, error) {
		return q.Where("project_id = ?", projectID), nil
	})
}

// Purge drops every cached report
func (s *ReportService) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *ReportService) build(ctx context.Context, scope ReportScope, id uuid.UUID, start, end time.Time,
	filter func(*gorm.DB) (*gorm.DB, error)) (*Report, error) {

	vs := models.ValidateRange(start, end)
	if id == uuid.Nil {
		vs = append(vs, models.Violation{Field: string(scope) + "_id", Message: "is required"})
	}
	if err := invalid(vs); err != nil {
		return nil, err
	}
	start, end = normalize(start), normalize(end)

	key := fmt.Sprintf("%s/%s/%d/%d", scope, id, start.Unix(), end.Unix())
	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			s.log.Debug("report cache hit", "key", key)
			return r.clone(), nil
		}
	}

	q, err := filter(s.db.WithContext(ctx).Model(&models.TimeEntry{}))
	if err != nil {
		return nil, err
	}
	var entries []models.TimeEntry
	err = q.Select("user_id", "project_id", "category_id", "start_time", "duration_seconds").
		Where("end_time IS NOT NULL AND start_time >= ? AND start_time < ?", start, end).
		Find(&entries).Error
	if err != nil {
		return nil, storageErr("load report entries", err)
	}

	names, err := s.categoryNames(ctx, entries)
	if err != nil {
		return nil, err
	}
	report := aggregate(entries, names)
	report.Scope, report.ScopeID = scope, id
	report.Start, report.End = start, end

	if s.cache != nil {
		s.cache.Add(key, report.clone())
	}
	return report, nil
}

// clone copies r so a cached report never shares buckets with a caller
func (r *Report) clone() *Report {
	c := *r
	c.ByCategory = slices.Clone(r.ByCategory)
	c.ByProject = slices.Clone(r.ByProject)
	c.ByUser = slices.Clone(r.ByUser)
	c.ByDay = slices.Clone(r.ByDay)
	return &c
}

func (s *ReportService) categoryNames(ctx context.Context, entries []models.TimeEntry) (map[uuid.UUID]string, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, e := range entries {
		if !seen[e.CategoryID] {
			seen[e.CategoryID] = true
			ids = append(ids, e.CategoryID)
		}
	}
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var categories []models.TimeCategory
	if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, storageErr("load report categories", err)
	}
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

// aggregate folds entries into totals and buckets
func aggregate(entries []models.TimeEntry, categoryNames map[uuid.UUID]string) *Report {
	byCategory := newTally()
	byProject := newTally()
	byUser := newTally()
	byDay := newTally()

	var total int64
	for _, e := range entries {
		total += e.DurationSeconds

		cat := e.CategoryID.String()
		label := categoryNames[e.CategoryID]
		if label == "" {
			label = cat
		}
		byCategory.add(cat, label, e.DurationSeconds)

		project := NoProject
		if e.ProjectID != nil {
			project = e.ProjectID.String()
		}
		byProject.add(project, project, e.DurationSeconds)

		byUser.add(e.UserID.String(), e.UserID.String(), e.DurationSeconds)

		day := e.StartTime.UTC().Format(dateLayout)
		byDay.add(day, e.StartTime.UTC().Format("Mon 02 Jan"), e.DurationSeconds)
	}

	return &Report{
		Total:      time.Duration(total) * time.Second,
		TotalHours: hours(total),
		EntryCount: len(entries),
		ByCategory: byCategory.buckets(false),
		ByProject:  byProject.buckets(false),
		ByUser:     byUser.buckets(false),
		ByDay:      byDay.buckets(true),
	}
}

func hours(seconds int64) decimal.Decimal {
	return decimal.NewFromInt(seconds).Div(secondsPerHour).Round(2)
}

type tally struct {
	order []string
	rows  map[string]*Bucket
	secs  map[string]int64
}

func newTally() *tally {
	return &tally{rows: map[string]*Bucket{}, secs: map[string]int64{}}
}

func (t *tally) add(key, label string, seconds int64) {
	b, ok := t.rows[key]
	if !ok {
		b = &Bucket{Key: key, Label: label}
		t.rows[key] = b
		t.order = append(t.order, key)
	}
	b.Entries++
	t.secs[key] += seconds
}

// buckets returns the rows by descending time, or by key when byKey is set
func (t *tally) buckets(byKey bool) []Bucket {
	out := make([]Bucket, 0, len(t.order))
	for _, key := range t.order {
		b := *t.rows[key]
		b.Duration = time.Duration(t.secs[key]) * time.Second
		b.Hours = hours(t.secs[key])
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if byKey || out[i].Duration == out[j].Duration {
			return out[i].Key < out[j].Key
		}
		return out[i].Duration > out[j].Duration
	})
	return out
}
