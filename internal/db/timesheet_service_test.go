package db

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/balkashynov/tally/internal/models"
)

func mustTimesheet(t *testing.T, svc *Services, user uuid.UUID, start, end time.Time) *models.Timesheet {
	t.Helper()
	sheet, err := svc.Timesheets.Create(context.Background(), models.TimesheetInput{UserID: user, StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("create timesheet: %v", err)
	}
	return sheet
}

// linkedEntry records an entry on the given day and links it to sheet
func linkedEntry(t *testing.T, svc *Services, sheet *models.Timesheet, category uuid.UUID, day, from, to int) *models.TimeEntry {
	t.Helper()
	in := bounded(sheet.UserID, category, at(day, from, 0), at(day, to, 0))
	in.TimesheetID = &sheet.ID
	return mustEntry(t, svc, in)
}

// sheetIn returns a fresh timesheet with one entry, driven into status
func sheetIn(t *testing.T, svc *Services, category uuid.UUID, status models.TimesheetStatus) *models.Timesheet {
	t.Helper()
	ctx := context.Background()
	sheet := mustTimesheet(t, svc, uuid.New(), monday, monday.AddDate(0, 0, 6))
	linkedEntry(t, svc, sheet, category, 0, 9, 17)

	review := models.ReviewInput{ApproverID: uuid.New()}
	var err error
	switch status {
	case models.TimesheetDraft:
	case models.TimesheetSubmitted:
		_, err = svc.Timesheets.Submit(ctx, sheet.ID)
	case models.TimesheetApproved:
		if _, err = svc.Timesheets.Submit(ctx, sheet.ID); err == nil {
			_, err = svc.Timesheets.Approve(ctx, sheet.ID, review)
		}
	case models.TimesheetRejected:
		if _, err = svc.Timesheets.Submit(ctx, sheet.ID); err == nil {
			_, err = svc.Timesheets.Reject(ctx, sheet.ID, review)
		}
	}
	if err != nil {
		t.Fatalf("drive timesheet to %s: %v", status, err)
	}
	got, _ := svc.Timesheets.Get(ctx, sheet.ID)
	return got
}

func applyAction(svc *Services, id uuid.UUID, action models.TimesheetAction) (*models.Timesheet, error) {
	ctx := context.Background()
	review := models.ReviewInput{ApproverID: uuid.New(), Notes: "checked"}
	switch action {
	case models.ActionSubmit:
		return svc.Timesheets.Submit(ctx, id)
	case models.ActionApprove:
		return svc.Timesheets.Approve(ctx, id, review)
	case models.ActionReject:
		return svc.Timesheets.Reject(ctx, id, review)
	case models.ActionReopen:
		return svc.Timesheets.Reopen(ctx, id)
	}
	return nil, errors.New("unknown action")
}

// ============================================================
// Create / update / delete
// ============================================================

func TestTimesheetCreate(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	user := uuid.New()

	sheet, err := svc.Timesheets.Create(ctx, models.TimesheetInput{
		UserID:    user,
		StartDate: monday.Add(15 * time.Hour),
		EndDate:   monday.AddDate(0, 0, 4).Add(8 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Status != models.TimesheetDraft {
		t.Fatalf("expected draft, got %s", sheet.Status)
	}
	if !sheet.StartDate.Equal(monday) || !sheet.EndDate.Equal(monday.AddDate(0, 0, 4)) {
		t.Fatalf("dates not truncated: %s - %s", sheet.StartDate, sheet.EndDate)
	}

	_, err = svc.Timesheets.Create(ctx, models.TimesheetInput{UserID: user, StartDate: monday, EndDate: monday})
	expectKind(t, err, ErrValidation)
}

func TestTimesheetOverlappingPeriods(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	user := uuid.New()
	mustTimesheet(t, svc, user, monday, monday.AddDate(0, 0, 6))

	_, err := svc.Timesheets.Create(ctx, models.TimesheetInput{UserID: user, StartDate: monday.AddDate(0, 0, 6), EndDate: monday.AddDate(0, 0, 13)})
	expectKind(t, err, ErrOverlapConflict)

	// The following week and another user's week are fine
	mustTimesheet(t, svc, user, monday.AddDate(0, 0, 7), monday.AddDate(0, 0, 13))
	mustTimesheet(t, svc, uuid.New(), monday, monday.AddDate(0, 0, 6))
}

func TestTimesheetUpdate(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	sheet := mustTimesheet(t, svc, uuid.New(), monday, monday.AddDate(0, 0, 6))
	linkedEntry(t, svc, sheet, c.ID, 3, 9, 12)

	end := monday.AddDate(0, 0, 4)
	got, err := svc.Timesheets.Update(ctx, sheet.ID, models.TimesheetPatch{EndDate: &end})
	if err != nil {
		t.Fatal(err)
	}
	if !got.EndDate.Equal(end) {
		t.Fatalf("end date not updated: %s", got.EndDate)
	}

	// Thursday's entry would fall outside
	end = monday.AddDate(0, 0, 2)
	_, err = svc.Timesheets.Update(ctx, sheet.ID, models.TimesheetPatch{EndDate: &end})
	expectKind(t, err, ErrValidation)

	if _, err := svc.Timesheets.Submit(ctx, sheet.ID); err != nil {
		t.Fatal(err)
	}
	end = monday.AddDate(0, 0, 6)
	_, err = svc.Timesheets.Update(ctx, sheet.ID, models.TimesheetPatch{EndDate: &end})
	expectKind(t, err, ErrTimesheetLocked)
}

func TestTimesheetDelete(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	sheet := mustTimesheet(t, svc, uuid.New(), monday, monday.AddDate(0, 0, 6))
	e := linkedEntry(t, svc, sheet, c.ID, 0, 9, 10)

	if err := svc.Timesheets.Delete(ctx, sheet.ID); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Timesheets.Get(ctx, sheet.ID)
	expectKind(t, err, ErrNotFound)

	got, err := svc.Entries.Get(ctx, e.ID)
	if err != nil {
		t.Fatal("entries must survive their timesheet")
	}
	if got.TimesheetID != nil {
		t.Fatal("entry should be unlinked")
	}

	for _, status := range []models.TimesheetStatus{models.TimesheetSubmitted, models.TimesheetApproved, models.TimesheetRejected} {
		sheet := sheetIn(t, svc, c.ID, status)
		expectKind(t, svc.Timesheets.Delete(ctx, sheet.ID), ErrTimesheetLocked)
	}
}

func TestTimesheetCollect(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	user := uuid.New()
	for day := 0; day < 9; day++ {
		mustEntry(t, svc, bounded(user, c.ID, at(day, 9, 0), at(day, 17, 0)))
	}
	mustEntry(t, svc, bounded(uuid.New(), c.ID, at(1, 9, 0), at(1, 17, 0)))
	sheet := mustTimesheet(t, svc, user, monday, monday.AddDate(0, 0, 6))

	n, err := svc.Timesheets.Collect(ctx, sheet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Fatalf("expected 7 entries collected, got %d", n)
	}
	if n, _ := svc.Timesheets.Collect(ctx, sheet.ID); n != 0 {
		t.Fatalf("second collect should link nothing, got %d", n)
	}

	linked, _ := svc.Entries.ListByTimesheet(ctx, sheet.ID, models.DefaultPage)
	if linked.Total != 7 {
		t.Fatalf("expected 7 linked entries, got %d", linked.Total)
	}
}

// ============================================================
// Workflow
// ============================================================

// Every status x action pair either follows the table or fails and leaves the timesheet alone.
func TestTimesheetTransitionTable(t *testing.T) {
	svc, _ := newTestServices(t)
	c := mustCategory(t, svc, "Development")

	for _, from := range models.TimesheetStatuses {
		for _, action := range models.TimesheetActions {
			t.Run(string(from)+"/"+string(action), func(t *testing.T) {
				sheet := sheetIn(t, svc, c.ID, from)
				next, legal := models.TimesheetMachine.Next(from, action)

				got, err := applyAction(svc, sheet.ID, action)
				if legal {
					if err != nil {
						t.Fatalf("expected %s, got %v", next, err)
					}
					if got.Status != next {
						t.Fatalf("expected %s, got %s", next, got.Status)
					}
					return
				}

				expectKind(t, err, ErrInvalidStateTransition)
				after, _ := svc.Timesheets.Get(context.Background(), sheet.ID)
				if !reflect.DeepEqual(sheet, after) {
					t.Fatalf("rejected %s changed the timesheet:\n%+v\n%+v", action, sheet, after)
				}
			})
		}
	}
}

// Scenario C
func TestTimesheetSubmitEmpty(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	sheet := mustTimesheet(t, svc, uuid.New(), monday, monday.AddDate(0, 0, 6))

	_, err := svc.Timesheets.Submit(ctx, sheet.ID)
	expectKind(t, err, ErrEmptyTimesheet)

	got, _ := svc.Timesheets.Get(ctx, sheet.ID)
	if got.Status != models.TimesheetDraft {
		t.Fatalf("expected draft, got %s", got.Status)
	}
}

func TestTimesheetSubmitOpenEntry(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	sheet := mustTimesheet(t, svc, uuid.New(), monday, monday.AddDate(0, 0, 6))
	in := models.EntryInput{UserID: sheet.UserID, CategoryID: c.ID, StartTime: at(1, 9, 0), TimesheetID: &sheet.ID}
	mustEntry(t, svc, in)

	_, err := svc.Timesheets.Submit(ctx, sheet.ID)
	expectKind(t, err, ErrValidation)
}

// Scenario B: a week of three entries totalling 24h goes through submit and approve.
func TestTimesheetApprovalScenario(t *testing.T) {
	svc, clock := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	user, approver := uuid.New(), uuid.New()
	sheet := mustTimesheet(t, svc, user, monday, monday.AddDate(0, 0, 6))

	entries := []*models.TimeEntry{
		linkedEntry(t, svc, sheet, c.ID, 0, 9, 17),
		linkedEntry(t, svc, sheet, c.ID, 1, 9, 17),
		linkedEntry(t, svc, sheet, c.ID, 2, 9, 17),
	}
	var total time.Duration
	for _, e := range entries {
		total += e.Duration()
	}
	if total != 24*time.Hour {
		t.Fatalf("expected 24h, got %s", total)
	}

	clock.Set(at(4, 18, 0))
	submitted, err := svc.Timesheets.Submit(ctx, sheet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if submitted.Status != models.TimesheetSubmitted || submitted.SubmittedAt == nil || !submitted.SubmittedAt.Equal(at(4, 18, 0)) {
		t.Fatalf("unexpected submitted timesheet %+v", submitted)
	}
	assertEntriesLocked(t, svc, entries)

	clock.Advance(time.Hour)
	approved, err := svc.Timesheets.Approve(ctx, sheet.ID, models.ReviewInput{ApproverID: approver, Notes: "OK"})
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != models.TimesheetApproved || approved.ApprovalNotes != "OK" ||
		approved.ApproverID == nil || *approved.ApproverID != approver || approved.ApprovedAt == nil {
		t.Fatalf("unexpected approved timesheet %+v", approved)
	}
	assertEntriesLocked(t, svc, entries)

	// No way back from approved
	_, err = svc.Timesheets.Reopen(ctx, sheet.ID)
	expectKind(t, err, ErrInvalidStateTransition)
	_, err = svc.Timesheets.Reject(ctx, sheet.ID, models.ReviewInput{ApproverID: approver})
	expectKind(t, err, ErrInvalidStateTransition)
	assertEntriesLocked(t, svc, entries)

	history, err := svc.Timesheets.History(ctx, sheet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Action != models.ActionSubmit || history[1].Action != models.ActionApprove {
		t.Fatalf("unexpected history %+v", history)
	}
	if history[1].ActorID == nil || *history[1].ActorID != approver || history[1].Notes != "OK" {
		t.Fatalf("approval not attributed: %+v", history[1])
	}
}

// assertEntriesLocked checks that edits and deletes fail and leave every entry untouched
func assertEntriesLocked(t *testing.T, svc *Services, entries []*models.TimeEntry) {
	t.Helper()
	ctx := context.Background()
	desc := "sneaky edit"
	for _, e := range entries {
		before, err := svc.Entries.Get(ctx, e.ID)
		if err != nil {
			t.Fatal(err)
		}

		_, err = svc.Entries.Update(ctx, e.ID, models.EntryPatch{Description: &desc})
		expectKind(t, err, ErrEntryLocked)
		_, err = svc.Entries.Update(ctx, e.ID, models.EntryPatch{ClearTimesheet: true})
		expectKind(t, err, ErrEntryLocked)
		expectKind(t, svc.Entries.Delete(ctx, e.ID), ErrEntryLocked)

		after, err := svc.Entries.Get(ctx, e.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(before, after) {
			t.Fatalf("locked entry changed:\n%+v\n%+v", before, after)
		}
	}
}

func TestTimesheetLinkingLocked(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	sheet := sheetIn(t, svc, c.ID, models.TimesheetSubmitted)

	in := bounded(sheet.UserID, c.ID, at(3, 9, 0), at(3, 10, 0))
	in.TimesheetID = &sheet.ID
	_, err := svc.Entries.Create(ctx, in)
	expectKind(t, err, ErrTimesheetLocked)

	_, err = svc.Timesheets.Collect(ctx, sheet.ID)
	expectKind(t, err, ErrTimesheetLocked)
}

func TestTimesheetRejectAndResubmit(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	sheet := sheetIn(t, svc, c.ID, models.TimesheetSubmitted)
	linked, _ := svc.Entries.ListByTimesheet(ctx, sheet.ID, models.DefaultPage)
	entry := linked.Items[0]

	long := string(make([]rune, models.MaxNotesLen+1))
	_, err := svc.Timesheets.Reject(ctx, sheet.ID, models.ReviewInput{ApproverID: uuid.New(), Notes: long})
	expectKind(t, err, ErrValidation)

	rejected, err := svc.Timesheets.Reject(ctx, sheet.ID, models.ReviewInput{ApproverID: uuid.New(), Notes: "Tuesday is missing"})
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != models.TimesheetRejected || rejected.RejectedAt == nil {
		t.Fatalf("unexpected rejected timesheet %+v", rejected)
	}

	// Entries are editable again, but stay on the sheet until it is reopened
	desc := "fixed"
	if _, err := svc.Entries.Update(ctx, entry.ID, models.EntryPatch{Description: &desc}); err != nil {
		t.Fatalf("entry should be editable after reject: %v", err)
	}
	expectKind(t, svc.Entries.Delete(ctx, entry.ID), ErrEntryLocked)
	if _, err := svc.Entries.Get(ctx, entry.ID); err != nil {
		t.Fatalf("entry should survive a rejected delete: %v", err)
	}
	linkedEntry(t, svc, sheet, c.ID, 1, 9, 17)

	// A rejected timesheet must be reopened before it is submitted again
	_, err = svc.Timesheets.Submit(ctx, sheet.ID)
	expectKind(t, err, ErrInvalidStateTransition)
	if _, err := svc.Timesheets.Reopen(ctx, sheet.ID); err != nil {
		t.Fatal(err)
	}
	resubmitted, err := svc.Timesheets.Submit(ctx, sheet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if resubmitted.Status != models.TimesheetSubmitted {
		t.Fatalf("expected submitted, got %s", resubmitted.Status)
	}

	history, _ := svc.Timesheets.History(ctx, sheet.ID)
	want := []models.TimesheetAction{models.ActionSubmit, models.ActionReject, models.ActionReopen, models.ActionSubmit}
	if len(history) != len(want) {
		t.Fatalf("expected %d transitions, got %d", len(want), len(history))
	}
	for i, h := range history {
		if h.Action != want[i] {
			t.Fatalf("transition %d: got %s, want %s", i, h.Action, want[i])
		}
	}
}

func TestRejectedEntryDeletion(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	sheet := sheetIn(t, svc, c.ID, models.TimesheetRejected)
	linked, _ := svc.Entries.ListByTimesheet(ctx, sheet.ID, models.DefaultPage)
	entry := linked.Items[0]

	end := entry.EndTime.Add(-time.Hour)
	if _, err := svc.Entries.Update(ctx, entry.ID, models.EntryPatch{EndTime: &end}); err != nil {
		t.Fatalf("rejected entries should be editable: %v", err)
	}
	expectKind(t, svc.Entries.Delete(ctx, entry.ID), ErrEntryLocked)

	if _, err := svc.Timesheets.Reopen(ctx, sheet.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Entries.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("entries of a draft should be deletable: %v", err)
	}
	_, err := svc.Entries.Get(ctx, entry.ID)
	expectKind(t, err, ErrNotFound)
}

func TestTimesheetArchive(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")

	draft := sheetIn(t, svc, c.ID, models.TimesheetDraft)
	expectKind(t, svc.Timesheets.Archive(ctx, draft.ID), ErrInvalidStateTransition)

	approved := sheetIn(t, svc, c.ID, models.TimesheetApproved)
	if err := svc.Timesheets.Archive(ctx, approved.ID); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Timesheets.Get(ctx, approved.ID)
	if err != nil {
		t.Fatalf("archived timesheet should stay readable: %v", err)
	}
	if !got.DeletedAt.Valid {
		t.Fatal("archived marker not set")
	}

	list, _ := svc.Timesheets.ListByUser(ctx, approved.UserID, models.DefaultPage)
	if list.Total != 0 {
		t.Fatal("archived timesheet should be hidden from listings")
	}
	expectKind(t, svc.Timesheets.Archive(ctx, approved.ID), ErrNotFound)

	// Its entries are still frozen
	linked, _ := svc.Entries.ListByTimesheet(ctx, approved.ID, models.DefaultPage)
	expectKind(t, svc.Entries.Delete(ctx, linked.Items[0].ID), ErrEntryLocked)
}

// ============================================================
// Queries
// ============================================================

func TestTimesheetQueries(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	user := uuid.New()
	for week := 0; week < 3; week++ {
		start := monday.AddDate(0, 0, 7*week)
		mustTimesheet(t, svc, user, start, start.AddDate(0, 0, 6))
	}

	list, err := svc.Timesheets.ListByUser(ctx, user, models.DefaultPage)
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 3 || !list.Items[0].StartDate.Equal(monday.AddDate(0, 0, 14)) {
		t.Fatalf("expected newest week first, got %+v", list.Items)
	}

	ranged, err := svc.Timesheets.ListByUserAndRange(ctx, user, at(6, 12, 0), at(7, 12, 0), models.DefaultPage)
	if err != nil {
		t.Fatal(err)
	}
	if ranged.Total != 2 || !ranged.Items[0].StartDate.Equal(monday) {
		t.Fatalf("expected the first two weeks, earliest first, got %+v", ranged.Items)
	}

	ranged, _ = svc.Timesheets.ListByUserAndRange(ctx, user, at(10, 0, 0), at(10, 0, 0), models.DefaultPage)
	if ranged.Total != 1 || !ranged.Items[0].StartDate.Equal(monday.AddDate(0, 0, 7)) {
		t.Fatalf("expected the second week, got %+v", ranged.Items)
	}

	// pages through every week of the range
	second, err := svc.Timesheets.ListByUserAndRange(ctx, user, at(0, 0, 0), at(20, 0, 0), models.Page{Number: 2, Size: 2})
	if err != nil {
		t.Fatal(err)
	}
	if second.Total != 3 || len(second.Items) != 1 || !second.Items[0].StartDate.Equal(monday.AddDate(0, 0, 14)) {
		t.Fatalf("expected the third week alone on page 2, got %d of %d", len(second.Items), second.Total)
	}

	_, err = svc.Timesheets.ListByUserAndRange(ctx, user, at(2, 0, 0), at(1, 0, 0), models.DefaultPage)
	expectKind(t, err, ErrValidation)
	_, err = svc.Timesheets.ListByUserAndRange(ctx, user, at(0, 0, 0), at(1, 0, 0), models.Page{Number: 0, Size: 10})
	expectKind(t, err, ErrValidation)

	drafts, _ := svc.Timesheets.ListByStatus(ctx, models.TimesheetDraft, models.Page{Number: 1, Size: 2})
	if drafts.Total != 3 || len(drafts.Items) != 2 {
		t.Fatalf("expected 2 of 3 drafts, got %d of %d", len(drafts.Items), drafts.Total)
	}
	_, err = svc.Timesheets.ListByStatus(ctx, "pending", models.DefaultPage)
	expectKind(t, err, ErrValidation)
}

func TestTimesheetPendingApprovals(t *testing.T) {
	lead, member, outsider := uuid.New(), uuid.New(), uuid.New()
	svc, _ := newTestServices(t, WithTeams(StaticTeams{lead: {member}}))
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")

	for _, user := range []uuid.UUID{lead, member, outsider} {
		sheet := mustTimesheet(t, svc, user, monday, monday.AddDate(0, 0, 6))
		linkedEntry(t, svc, sheet, c.ID, 0, 9, 17)
		if _, err := svc.Timesheets.Submit(ctx, sheet.ID); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := svc.Timesheets.ListPendingApprovals(ctx, lead, models.DefaultPage)
	if err != nil {
		t.Fatal(err)
	}
	if pending.Total != 1 || pending.Items[0].UserID != member {
		t.Fatalf("lead should only see the member's timesheet, got %+v", pending.Items)
	}

	pending, _ = svc.Timesheets.ListPendingApprovals(ctx, member, models.DefaultPage)
	if pending.Total != 0 {
		t.Fatalf("member leads nobody, got %d", pending.Total)
	}

	_, err = svc.Timesheets.ListPendingApprovals(ctx, uuid.Nil, models.DefaultPage)
	expectKind(t, err, ErrValidation)
}

func TestTimesheetPendingApprovalsWithoutTeams(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	c := mustCategory(t, svc, "Development")
	approver := uuid.New()
	for i := 0; i < 3; i++ {
		sheetIn(t, svc, c.ID, models.TimesheetSubmitted)
	}
	sheetIn(t, svc, c.ID, models.TimesheetDraft)

	pending, err := svc.Timesheets.ListPendingApprovals(ctx, approver, models.DefaultPage)
	if err != nil {
		t.Fatal(err)
	}
	if pending.Total != 3 {
		t.Fatalf("expected every submitted timesheet, got %d", pending.Total)
	}
}
