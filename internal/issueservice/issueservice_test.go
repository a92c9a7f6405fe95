package issueservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ams/internal/idgen"
	"ams/internal/issuestorage"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()
	if err := Init(ctx, dir); err != nil {
		t.Fatalf("init store: %v", err)
	}
	store, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func mustCreate(t *testing.T, store *Store, title string, deps ...int) *issuestorage.Issue {
	t.Helper()
	issue := &issuestorage.Issue{Title: title, Dependencies: deps}
	if _, err := store.Create(context.Background(), issue); err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	return issue
}

func readyIDs(t *testing.T, store *Store) []int {
	t.Helper()
	ready, err := store.Ready(context.Background())
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	ids := make([]int, len(ready))
	for i, issue := range ready {
		ids[i] = issue.ID
	}
	return ids
}

func TestCreateAssignsDefaults(t *testing.T) {
	store, _ := newTestStore(t)

	issue := mustCreate(t, store, "First issue")
	if issue.ID != 1 {
		t.Errorf("first id = %d, want 1", issue.ID)
	}
	if issue.Status != issuestorage.StatusOpen {
		t.Errorf("status = %q, want open", issue.Status)
	}
	if issue.CreatedAt.IsZero() || !issue.UpdatedAt.Equal(issue.CreatedAt) {
		t.Errorf("timestamps not initialized: created=%v updated=%v", issue.CreatedAt, issue.UpdatedAt)
	}
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create(context.Background(), &issuestorage.Issue{Title: "   "})
	var verr *issuestorage.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateRejectsUnknownDependency(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create(context.Background(), &issuestorage.Issue{
		Title:        "Depends on nothing that exists",
		Dependencies: []int{9999},
	})
	if !errors.Is(err, issuestorage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown dependency, got %v", err)
	}
}

func TestCreateAllowMissingDepsWarns(t *testing.T) {
	store, _ := newTestStore(t)

	issue := &issuestorage.Issue{Title: "Forward reference", Dependencies: []int{9999}}
	warnings, err := store.Create(context.Background(), issue,
		issuestorage.WriteOpts{AllowMissingDeps: true})
	if err != nil {
		t.Fatalf("create with AllowMissingDeps: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 integrity warning, got %d", len(warnings))
	}
	if warnings[0].IssueID != issue.ID || len(warnings[0].Missing) != 1 || warnings[0].Missing[0] != 9999 {
		t.Errorf("unexpected warning: %+v", warnings[0])
	}

	// The condition is also visible through Integrity().
	integrity, err := store.Integrity(context.Background())
	if err != nil {
		t.Fatalf("integrity: %v", err)
	}
	if len(integrity) != 1 {
		t.Errorf("expected 1 integrity warning from store scan, got %d", len(integrity))
	}
}

func TestIDsMonotonicAcrossRestarts(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, "A")
	b := mustCreate(t, store, "B")
	if b.ID <= a.ID {
		t.Fatalf("ids not increasing: %d then %d", a.ID, b.ID)
	}
	store.Close()

	reopened, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	c := &issuestorage.Issue{Title: "C"}
	if _, err := reopened.Create(ctx, c); err != nil {
		t.Fatalf("create after reopen: %v", err)
	}
	if c.ID <= b.ID {
		t.Errorf("id %d after restart not greater than %d", c.ID, b.ID)
	}
}

func TestGetNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), 12345)
	if !errors.Is(err, issuestorage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, "A")
	b := mustCreate(t, store, "B", a.ID)
	mustCreate(t, store, "C")

	blocked := issuestorage.StatusBlocked
	if _, _, err := store.Update(ctx, b.ID, issuestorage.Patch{Status: &blocked}); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := store.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 issues, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ID <= all[i-1].ID {
			t.Fatalf("list not in ID order: %v then %v", all[i-1].ID, all[i].ID)
		}
	}

	byStatus, err := store.List(ctx, &issuestorage.ListFilter{Status: &blocked})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != b.ID {
		t.Errorf("status filter returned %v", byStatus)
	}

	dep := a.ID
	byDep, err := store.List(ctx, &issuestorage.ListFilter{DependsOn: &dep})
	if err != nil {
		t.Fatalf("list by dep: %v", err)
	}
	if len(byDep) != 1 || byDep[0].ID != b.ID {
		t.Errorf("dependency filter returned %v", byDep)
	}

	// An unmatched filter yields an empty sequence, never an error.
	done := issuestorage.StatusDone
	none, err := store.List(ctx, &issuestorage.ListFilter{Status: &done})
	if err != nil {
		t.Fatalf("list with no matches: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no matches, got %v", none)
	}
}

func TestUpdatePersistsAcrossReload(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, "A")

	blocked := issuestorage.StatusBlocked
	desc := "waiting on upstream fix"
	updated, _, err := store.Update(ctx, a.ID, issuestorage.Patch{
		Status:      &blocked,
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Error("updated_at must not precede created_at")
	}
	store.Close()

	reopened, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if got.Status != issuestorage.StatusBlocked {
		t.Errorf("status after reload = %q, want blocked", got.Status)
	}
	if got.Description != desc {
		t.Errorf("description after reload = %q, want %q", got.Description, desc)
	}
	if !got.Equal(updated) {
		t.Errorf("reloaded issue differs from update result:\n want %+v\n got  %+v", updated, got)
	}
}

func TestUpdateRejectsInvalidState(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, "A")

	empty := ""
	_, _, err := store.Update(ctx, a.ID, issuestorage.Patch{Title: &empty})
	var verr *issuestorage.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for empty title, got %v", err)
	}

	self := []int{a.ID}
	_, _, err = store.Update(ctx, a.ID, issuestorage.Patch{Dependencies: &self})
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for self-dependency, got %v", err)
	}

	_, _, err = store.Update(ctx, 777, issuestorage.Patch{Title: &empty})
	if !errors.Is(err, issuestorage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestReadyScenario(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, "A")
	if got := readyIDs(t, store); len(got) != 1 || got[0] != a.ID {
		t.Fatalf("after creating A, ready = %v, want [%d]", got, a.ID)
	}

	b := mustCreate(t, store, "B", a.ID)
	got := readyIDs(t, store)
	if len(got) != 1 || got[0] != a.ID {
		t.Fatalf("after creating B(dep A), ready = %v, want [%d]", got, a.ID)
	}

	done, report, err := store.MarkDone(ctx, a.ID)
	if err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if done.Status != issuestorage.StatusDone {
		t.Errorf("status = %q, want done", done.Status)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("closing A in order should not warn, got %v", report.Warnings)
	}
	if len(report.NewlyReady) != 1 || report.NewlyReady[0] != b.ID {
		t.Errorf("expected B to be newly ready, got %v", report.NewlyReady)
	}

	got = readyIDs(t, store)
	if len(got) != 1 || got[0] != b.ID {
		t.Errorf("after done(A), ready = %v, want [%d]", got, b.ID)
	}
}

func TestMarkDoneOutOfOrderWarns(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, "A")
	b := mustCreate(t, store, "B", a.ID)

	// Close B while its dependency A is still open: allowed but flagged.
	_, report, err := store.MarkDone(ctx, b.ID)
	if err != nil {
		t.Fatalf("mark done out of order: %v", err)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", report.Warnings)
	}
	if w := report.Warnings[0]; len(w.Unmet) != 1 || w.Unmet[0] != a.ID {
		t.Errorf("expected unmet dependency on A, got %+v", w)
	}
}

func TestMarkDoneReportsBlockedDependents(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, "A")
	b := mustCreate(t, store, "B")
	c := mustCreate(t, store, "C", a.ID, b.ID)

	_, report, err := store.MarkDone(ctx, a.ID)
	if err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if len(report.NewlyReady) != 0 {
		t.Errorf("C still depends on open B, NewlyReady = %v", report.NewlyReady)
	}
	if len(report.Blocked) != 1 || report.Blocked[0] != c.ID {
		t.Errorf("expected C reported blocked, got %v", report.Blocked)
	}
}

func TestMarkDoneIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, "A")
	if _, _, err := store.MarkDone(ctx, a.ID); err != nil {
		t.Fatalf("first done: %v", err)
	}
	issue, report, err := store.MarkDone(ctx, a.ID)
	if err != nil {
		t.Fatalf("second done: %v", err)
	}
	if issue.Status != issuestorage.StatusDone {
		t.Errorf("status = %q, want done", issue.Status)
	}
	if len(report.Warnings) != 0 || len(report.NewlyReady) != 0 {
		t.Errorf("repeat done should be a no-op, got report %+v", report)
	}
}

func TestCycleNeverReady(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, store, "A")
	b := mustCreate(t, store, "B", a.ID)

	// Close the loop: A depends on B. Cycles are not rejected, just
	// never reported as ready.
	deps := []int{b.ID}
	if _, _, err := store.Update(ctx, a.ID, issuestorage.Patch{Dependencies: &deps}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := readyIDs(t, store); len(got) != 0 {
		t.Errorf("cycle members reported ready: %v", got)
	}
}

func removeMeta(t *testing.T, dir string) {
	t.Helper()
	if err := os.Remove(filepath.Join(dir, idgen.MetaFile)); err != nil {
		t.Fatalf("remove meta: %v", err)
	}
}

func TestOpenSurvivesWithoutMetaFile(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, "A")
	mustCreate(t, store, "B")
	store.Close()

	// Lose the counter file; creation must still never reuse an id.
	removeMeta(t, dir)

	reopened, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("reopen without meta: %v", err)
	}
	defer reopened.Close()

	c := &issuestorage.Issue{Title: "C"}
	if _, err := reopened.Create(ctx, c); err != nil {
		t.Fatalf("create without meta: %v", err)
	}
	if c.ID != 3 {
		t.Errorf("expected scan-recovered id 3, got %d", c.ID)
	}
}
