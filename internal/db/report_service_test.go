package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/balkashynov/tally/internal/models"
)

func TestUserReport(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	dev := mustCategory(t, svc, "Development")
	meet := mustCategory(t, svc, "Meetings")
	user := uuid.New()
	project := uuid.New()

	in := bounded(user, dev.ID, at(0, 9, 0), at(0, 12, 0))
	in.ProjectID = &project
	mustEntry(t, svc, in)
	mustEntry(t, svc, bounded(user, meet.ID, at(0, 13, 0), at(0, 13, 45)))
	mustEntry(t, svc, bounded(user, dev.ID, at(1, 9, 0), at(1, 10, 20)))
	// Open entries and other users are ignored
	mustEntry(t, svc, models.EntryInput{UserID: user, CategoryID: dev.ID, StartTime: at(1, 14, 0)})
	mustEntry(t, svc, bounded(uuid.New(), dev.ID, at(0, 9, 0), at(0, 17, 0)))

	r, err := svc.Reports.UserReport(ctx, user, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if r.Scope != ScopeUser || r.ScopeID != user {
		t.Fatalf("unexpected scope %s %s", r.Scope, r.ScopeID)
	}
	if r.EntryCount != 3 || r.Total != 5*time.Hour+5*time.Minute {
		t.Fatalf("expected 3 entries and 5h05m, got %d and %s", r.EntryCount, r.Total)
	}
	if !r.TotalHours.Equal(decimal.RequireFromString("5.08")) {
		t.Fatalf("expected 5.08 hours, got %s", r.TotalHours)
	}

	if len(r.ByCategory) != 2 || r.ByCategory[0].Label != "Development" || r.ByCategory[0].Duration != 4*time.Hour+20*time.Minute {
		t.Fatalf("unexpected category buckets %+v", r.ByCategory)
	}
	if r.ByCategory[1].Label != "Meetings" || !r.ByCategory[1].Hours.Equal(decimal.RequireFromString("0.75")) {
		t.Fatalf("unexpected meetings bucket %+v", r.ByCategory[1])
	}

	if len(r.ByProject) != 2 {
		t.Fatalf("expected project and no-project buckets, got %+v", r.ByProject)
	}
	if r.ByProject[0].Key != project.String() || r.ByProject[1].Key != NoProject {
		t.Fatalf("unexpected project buckets %+v", r.ByProject)
	}

	if len(r.ByDay) != 2 || r.ByDay[0].Key != "2026-03-02" || r.ByDay[0].Entries != 2 {
		t.Fatalf("unexpected day buckets %+v", r.ByDay)
	}
	if len(r.ByUser) != 1 || r.ByUser[0].Key != user.String() {
		t.Fatalf("unexpected user buckets %+v", r.ByUser)
	}
}

func TestReportRangeValidation(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.Reports.UserReport(ctx, user, at(2, 0, 0), at(1, 0, 0))
	expectKind(t, err, ErrValidation)
	_, err = svc.Reports.ProjectReport(ctx, uuid.Nil, at(1, 0, 0), at(2, 0, 0))
	expectKind(t, err, ErrValidation)

	r, err := svc.Reports.UserReport(ctx, user, at(1, 0, 0), at(1, 0, 0))
	if err != nil {
		t.Fatalf("an empty range is valid: %v", err)
	}
	if r.EntryCount != 0 || !r.TotalHours.IsZero() || len(r.ByCategory) != 0 {
		t.Fatalf("expected an empty report, got %+v", r)
	}
}

func TestReportRangeIsHalfOpen(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	user := uuid.New()
	mustEntry(t, svc, bounded(user, c.ID, at(1, 0, 0), at(1, 1, 0)))
	mustEntry(t, svc, bounded(user, c.ID, at(2, 0, 0), at(2, 2, 0)))

	tests := []struct {
		name       string
		start, end time.Time
		count      int
	}{
		{"start bound included", at(1, 0, 0), at(2, 0, 0), 1},
		{"end bound excluded", at(0, 0, 0), at(2, 0, 0), 1},
		{"equal bounds are empty", at(1, 0, 0), at(1, 0, 0), 0},
		{"one second covers the start", at(1, 0, 0), at(1, 0, 0).Add(time.Second), 1},
		{"whole days", at(1, 0, 0), at(3, 0, 0), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := svc.Reports.UserReport(ctx, user, tt.start, tt.end)
			if err != nil {
				t.Fatal(err)
			}
			if r.EntryCount != tt.count {
				t.Fatalf("expected %d entries, got %d", tt.count, r.EntryCount)
			}
		})
	}
}

// Splitting a range at a point no entry spans never changes the total.
func TestReportTotalsAreAdditive(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	user := uuid.New()
	for day := 0; day < 7; day++ {
		mustEntry(t, svc, bounded(user, c.ID, at(day, 9, 0), at(day, 9, 0).Add(time.Duration(day+1)*37*time.Minute)))
		mustEntry(t, svc, bounded(user, c.ID, at(day, 14, 0), at(day, 14, 13)))
	}

	d1, d3 := monday, monday.AddDate(0, 0, 7)
	whole, err := svc.Reports.UserReport(ctx, user, d1, d3)
	if err != nil {
		t.Fatal(err)
	}
	for _, d2 := range []time.Time{d1, at(0, 12, 0), at(3, 0, 0), at(5, 13, 0), d3} {
		left, err := svc.Reports.UserReport(ctx, user, d1, d2)
		if err != nil {
			t.Fatal(err)
		}
		right, err := svc.Reports.UserReport(ctx, user, d2, d3)
		if err != nil {
			t.Fatal(err)
		}
		if left.Total+right.Total != whole.Total {
			t.Fatalf("split at %s: %s + %s != %s", d2, left.Total, right.Total, whole.Total)
		}
		if left.EntryCount+right.EntryCount != whole.EntryCount {
			t.Fatalf("split at %s: entry counts do not add up", d2)
		}
	}
}

func TestTeamReport(t *testing.T) {
	lead, member, outsider := uuid.New(), uuid.New(), uuid.New()
	svc, _ := newTestServices(t, WithTeams(StaticTeams{lead: {member}}))
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	mustEntry(t, svc, bounded(lead, c.ID, at(0, 9, 0), at(0, 10, 0)))
	mustEntry(t, svc, bounded(member, c.ID, at(0, 9, 0), at(0, 11, 0)))
	mustEntry(t, svc, bounded(outsider, c.ID, at(0, 9, 0), at(0, 17, 0)))

	r, err := svc.Reports.TeamReport(ctx, lead, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if r.Total != 3*time.Hour || len(r.ByUser) != 2 {
		t.Fatalf("expected 3h over two users, got %s over %d", r.Total, len(r.ByUser))
	}
	if r.ByUser[0].Key != member.String() {
		t.Fatalf("largest contributor should come first, got %+v", r.ByUser)
	}

	// Without a team the caller only sees their own time
	r, _ = svc.Reports.TeamReport(ctx, outsider, monday, monday.AddDate(0, 0, 7))
	if r.Total != 8*time.Hour {
		t.Fatalf("expected 8h, got %s", r.Total)
	}
}

func TestProjectReport(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	project := uuid.New()

	for i, user := range []uuid.UUID{uuid.New(), uuid.New()} {
		in := bounded(user, c.ID, at(i, 9, 0), at(i, 10, 30))
		in.ProjectID = &project
		mustEntry(t, svc, in)
	}
	mustEntry(t, svc, bounded(uuid.New(), c.ID, at(0, 9, 0), at(0, 17, 0)))

	r, err := svc.Reports.ProjectReport(ctx, project, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if r.Total != 3*time.Hour || r.EntryCount != 2 || len(r.ByUser) != 2 || len(r.ByProject) != 1 {
		t.Fatalf("unexpected project report %+v", r)
	}
	if !r.TotalHours.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3 hours, got %s", r.TotalHours)
	}
}

func TestReportCache(t *testing.T) {
	svc, _ := newTestServices(t, WithReportCache(8, time.Hour))
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	user := uuid.New()
	mustEntry(t, svc, bounded(user, c.ID, at(0, 9, 0), at(0, 10, 0)))

	first, err := svc.Reports.UserReport(ctx, user, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	mustEntry(t, svc, bounded(user, c.ID, at(1, 9, 0), at(1, 10, 0)))

	cached, _ := svc.Reports.UserReport(ctx, user, monday, monday.AddDate(0, 0, 7))
	if cached.Total != time.Hour || cached.EntryCount != 1 {
		t.Fatalf("second call within the TTL should be served from cache, got %s", cached.Total)
	}
	if cached == first {
		t.Fatal("cache hits should hand out their own copy")
	}

	svc.Reports.Purge()
	fresh, _ := svc.Reports.UserReport(ctx, user, monday, monday.AddDate(0, 0, 7))
	if fresh.Total != 2*time.Hour {
		t.Fatalf("expected 2h after purge, got %s", fresh.Total)
	}
}

func TestReportCacheHitsAreIsolated(t *testing.T) {
	svc, _ := newTestServices(t, WithReportCache(8, time.Hour))
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	user := uuid.New()
	mustEntry(t, svc, bounded(user, c.ID, at(0, 9, 0), at(0, 10, 0)))

	first, err := svc.Reports.UserReport(ctx, user, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	first.ByCategory[0].Label = "tampered"
	first.ByCategory = append(first.ByCategory, Bucket{Label: "extra"})
	first.Total = 0

	again, _ := svc.Reports.UserReport(ctx, user, monday, monday.AddDate(0, 0, 7))
	again.ByDay[0].Entries = 99

	last, _ := svc.Reports.UserReport(ctx, user, monday, monday.AddDate(0, 0, 7))
	if last.Total != time.Hour || len(last.ByCategory) != 1 || last.ByCategory[0].Label != "Development" {
		t.Fatalf("caller changes leaked into the cache: %+v", last)
	}
	if last.ByDay[0].Entries != 1 {
		t.Fatalf("caller changes leaked into the cache: %+v", last.ByDay)
	}
}

func TestReportCacheDisabled(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	user := uuid.New()

	first, _ := svc.Reports.UserReport(ctx, user, monday, monday.AddDate(0, 0, 7))
	mustEntry(t, svc, bounded(user, c.ID, at(0, 9, 0), at(0, 10, 0)))
	second, _ := svc.Reports.UserReport(ctx, user, monday, monday.AddDate(0, 0, 7))

	if first.Total != 0 || second.Total != time.Hour {
		t.Fatalf("uncached reports should reflect every write: %s then %s", first.Total, second.Total)
	}
}
