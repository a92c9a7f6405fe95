// Package issueservice composes the append log, the identifier allocator,
// and the dependency graph into the issue store facade consumed by the CLI.
//
// All mutating operations are append-then-acknowledge: under the mutation
// lock the store refreshes its view from the log, validates the change,
// durably appends the superseding record, and only then updates the
// in-memory state. On a crash mid-append the log is the sole source of
// truth on the next load.
package issueservice

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ams/internal/graph"
	"ams/internal/idgen"
	"ams/internal/issuestorage"
	"ams/internal/issuestorage/appendlog"
)

// Store is the issue store facade. It is not safe for concurrent use within
// a process; cross-process mutation safety comes from the append log's
// advisory file lock.
type Store struct {
	log    *appendlog.Log
	ids    *idgen.Allocator
	issues map[int]*issuestorage.Issue
	graph  *graph.Graph
}

var _ issuestorage.IssueStore = (*Store)(nil)

// Init creates the .ams directory, an empty log file, and the identifier
// counter. Safe to call on an already-initialized directory.
func Init(ctx context.Context, dir string) error {
	log := appendlog.New(dir)
	if err := log.Init(ctx); err != nil {
		return err
	}
	ids := idgen.New(dir, func() (int, error) { return log.MaxID(ctx) })
	return ids.Init()
}

// Open reconstructs the in-memory issue set and dependency index from the
// log. The identifier counter is reconciled so it always agrees with the
// loaded records.
func Open(ctx context.Context, dir string, opts ...appendlog.Option) (*Store, error) {
	log := appendlog.New(dir, opts...)

	issues, err := log.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	ids := idgen.New(dir, func() (int, error) { return log.MaxID(context.Background()) })
	maxID := 0
	for id := range issues {
		if id > maxID {
			maxID = id
		}
	}
	if err := ids.EnsureAtLeast(maxID + 1); err != nil {
		return nil, err
	}

	return &Store{
		log:    log,
		ids:    ids,
		issues: issues,
		graph:  graph.Build(issues),
	}, nil
}

// Close releases the store. Every append is already durably flushed, so
// there is nothing to write back.
func (s *Store) Close() error {
	s.issues = nil
	s.graph = nil
	return nil
}

// reload refreshes the in-memory state from the log. Called at the start of
// every mutating operation, under the lock, so appends from other
// invocations since Open are observed before we write.
func (s *Store) reload(ctx context.Context) error {
	issues, err := s.log.LoadAll(ctx)
	if err != nil {
		return err
	}
	s.issues = issues
	s.graph = graph.Build(issues)
	return nil
}

// checkDeps enforces the unknown-dependency policy for a write. By default
// unknown IDs are rejected with ErrNotFound; with AllowMissingDeps the write
// proceeds and the condition is surfaced as an IntegrityWarning.
func (s *Store) checkDeps(issueID int, deps []int, allowMissing bool) ([]issuestorage.IntegrityWarning, error) {
	var missing []int
	for _, dep := range deps {
		if _, ok := s.issues[dep]; !ok && dep != issueID {
			missing = append(missing, dep)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if !allowMissing {
		return nil, fmt.Errorf("dependency on unknown issue(s) %v: %w", missing, issuestorage.ErrNotFound)
	}
	return []issuestorage.IntegrityWarning{{IssueID: issueID, Missing: missing}}, nil
}

// commit appends the record and, once the append has durably succeeded,
// advances the in-memory state.
func (s *Store) commit(ctx context.Context, issue *issuestorage.Issue) error {
	if err := s.log.Append(ctx, issue); err != nil {
		return err
	}
	s.issues[issue.ID] = issue
	s.graph.Upsert(issue)
	return nil
}

// Create assigns a fresh ID, defaults the status to open, stamps both
// timestamps, and durably appends the new issue.
func (s *Store) Create(ctx context.Context, issue *issuestorage.Issue, opts ...issuestorage.WriteOpts) ([]issuestorage.IntegrityWarning, error) {
	var opt issuestorage.WriteOpts
	if len(opts) > 0 {
		opt = opts[0]
	}

	release, err := s.log.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.reload(ctx); err != nil {
		return nil, err
	}

	issue.NormalizeDependencies()
	warnings, err := s.checkDeps(0, issue.Dependencies, opt.AllowMissingDeps)
	if err != nil {
		return nil, err
	}

	id, err := s.ids.Next()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	issue.ID = id
	issue.Status = issuestorage.StatusOpen
	issue.CreatedAt = now
	issue.UpdatedAt = now

	if err := issue.Validate(); err != nil {
		return nil, err
	}
	for i := range warnings {
		warnings[i].IssueID = id
	}

	if err := s.commit(ctx, issue.Clone()); err != nil {
		return nil, err
	}
	return warnings, nil
}

// Get retrieves an issue by ID.
func (s *Store) Get(ctx context.Context, id int) (*issuestorage.Issue, error) {
	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %d: %w", id, issuestorage.ErrNotFound)
	}
	return issue.Clone(), nil
}

// List returns issues matching the filter in ID order.
func (s *Store) List(ctx context.Context, filter *issuestorage.ListFilter) ([]*issuestorage.Issue, error) {
	result := make([]*issuestorage.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		if filter != nil {
			if filter.Status != nil && issue.Status != *filter.Status {
				continue
			}
			if filter.DependsOn != nil && !issue.HasDependency(*filter.DependsOn) {
				continue
			}
		}
		result = append(result, issue.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Update applies a partial patch to an issue, bumps updated_at, and appends
// the superseding record.
func (s *Store) Update(ctx context.Context, id int, patch issuestorage.Patch, opts ...issuestorage.WriteOpts) (*issuestorage.Issue, []issuestorage.IntegrityWarning, error) {
	var opt issuestorage.WriteOpts
	if len(opts) > 0 {
		opt = opts[0]
	}

	release, err := s.log.Lock(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	if err := s.reload(ctx); err != nil {
		return nil, nil, err
	}

	cur, ok := s.issues[id]
	if !ok {
		return nil, nil, fmt.Errorf("issue %d: %w", id, issuestorage.ErrNotFound)
	}

	next := cur.Clone()
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}

	var warnings []issuestorage.IntegrityWarning
	if patch.Dependencies != nil {
		next.Dependencies = append([]int(nil), (*patch.Dependencies)...)
		next.NormalizeDependencies()
		warnings, err = s.checkDeps(id, next.Dependencies, opt.AllowMissingDeps)
		if err != nil {
			return nil, nil, err
		}
	}

	next.UpdatedAt = time.Now().UTC()
	if err := next.Validate(); err != nil {
		return nil, nil, err
	}

	if err := s.commit(ctx, next); err != nil {
		return nil, nil, err
	}
	return next.Clone(), warnings, nil
}

// MarkDone transitions an issue to done. Closing an issue whose own
// dependencies are not yet done is allowed but flagged, and the report names
// the dependents this close newly unblocked.
func (s *Store) MarkDone(ctx context.Context, id int) (*issuestorage.Issue, *issuestorage.DoneReport, error) {
	release, err := s.log.Lock(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	if err := s.reload(ctx); err != nil {
		return nil, nil, err
	}

	cur, ok := s.issues[id]
	if !ok {
		return nil, nil, fmt.Errorf("issue %d: %w", id, issuestorage.ErrNotFound)
	}

	report := &issuestorage.DoneReport{}
	if cur.Status == issuestorage.StatusDone {
		// Already done; nothing to append.
		return cur.Clone(), report, nil
	}

	missing := s.graph.MissingDeps(id)
	unmet := s.graph.UnmetDeps(id)
	if len(missing) > 0 || len(unmet) > 0 {
		report.Warnings = append(report.Warnings, issuestorage.IntegrityWarning{
			IssueID: id,
			Missing: missing,
			Unmet:   unmet,
		})
	}

	next := cur.Clone()
	next.Status = issuestorage.StatusDone
	next.UpdatedAt = time.Now().UTC()

	if err := s.commit(ctx, next); err != nil {
		return nil, nil, err
	}

	for _, dep := range s.graph.Dependents(id) {
		dependent, ok := s.issues[dep]
		if !ok || dependent.Status == issuestorage.StatusDone {
			continue
		}
		if s.graph.IsReady(dep) {
			report.NewlyReady = append(report.NewlyReady, dep)
		} else {
			report.Blocked = append(report.Blocked, dep)
		}
	}

	return next.Clone(), report, nil
}

// Ready returns the issues whose every dependency is done and whose own
// status is not done, in ID order. Issues with unknown dependency IDs or
// inside a dependency cycle are never reported.
func (s *Store) Ready(ctx context.Context) ([]*issuestorage.Issue, error) {
	ids := s.graph.Ready()
	result := make([]*issuestorage.Issue, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.issues[id].Clone())
	}
	return result, nil
}

// Integrity reports dependency references to unknown IDs anywhere in the
// store, in ID order.
func (s *Store) Integrity(ctx context.Context) ([]issuestorage.IntegrityWarning, error) {
	ids := make([]int, 0, len(s.issues))
	for id := range s.issues {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var warnings []issuestorage.IntegrityWarning
	for _, id := range ids {
		if missing := s.graph.MissingDeps(id); len(missing) > 0 {
			warnings = append(warnings, issuestorage.IntegrityWarning{IssueID: id, Missing: missing})
		}
	}
	return warnings, nil
}
