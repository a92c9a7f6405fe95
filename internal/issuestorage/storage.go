// Package issuestorage defines the issue record model, error kinds, and the
// store contract for ams. The append-log engine lives in the appendlog
// subpackage; the facade composing it is internal/issueservice.
package issuestorage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sentinel errors returned by IssueStore implementations.
var (
	ErrNotFound    = errors.New("issue not found")
	ErrLockTimeout = errors.New("could not acquire lock")
)

// Status represents the current state of an issue.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// AllStatuses lists every valid status value.
var AllStatuses = []Status{StatusOpen, StatusInProgress, StatusBlocked, StatusDone}

// Valid reports whether s is one of the defined status values.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// ParseStatus converts a user-supplied string to a Status.
// Accepts "in-progress" as an alias for "in_progress".
func ParseStatus(s string) (Status, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	st := Status(normalized)
	if !st.Valid() {
		return "", &ValidationError{Msg: fmt.Sprintf("invalid status %q: must be one of open, in_progress, blocked, done", s)}
	}
	return st, nil
}

// Issue represents a single unit of trackable work.
// Identity is by ID alone; ID and CreatedAt are immutable after creation.
type Issue struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Dependencies []int     `json:"dependencies,omitempty"`
}

// Validate checks the field invariants that must hold for every in-memory
// issue: non-blank title, valid status, no self-dependency, and
// updated_at >= created_at.
func (issue *Issue) Validate() error {
	if issue.ID <= 0 {
		return &ValidationError{Msg: fmt.Sprintf("invalid issue ID %d", issue.ID)}
	}
	if strings.TrimSpace(issue.Title) == "" {
		return &ValidationError{Msg: "title must not be empty"}
	}
	if !issue.Status.Valid() {
		return &ValidationError{Msg: fmt.Sprintf("invalid status %q", issue.Status)}
	}
	for _, dep := range issue.Dependencies {
		if dep == issue.ID {
			return &ValidationError{Msg: fmt.Sprintf("issue %d cannot depend on itself", issue.ID)}
		}
		if dep <= 0 {
			return &ValidationError{Msg: fmt.Sprintf("invalid dependency ID %d", dep)}
		}
	}
	if issue.UpdatedAt.Before(issue.CreatedAt) {
		return &ValidationError{Msg: "updated_at must not precede created_at"}
	}
	return nil
}

// NormalizeDependencies sorts the dependency list and removes duplicates,
// giving the field its set semantics a canonical on-disk encoding.
func (issue *Issue) NormalizeDependencies() {
	if len(issue.Dependencies) == 0 {
		return
	}
	seen := make(map[int]bool, len(issue.Dependencies))
	deps := issue.Dependencies[:0]
	for _, dep := range issue.Dependencies {
		if !seen[dep] {
			seen[dep] = true
			deps = append(deps, dep)
		}
	}
	sort.Ints(deps)
	issue.Dependencies = deps
}

// HasDependency reports whether the issue depends on the given ID.
func (issue *Issue) HasDependency(id int) bool {
	for _, dep := range issue.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the issue.
func (issue *Issue) Clone() *Issue {
	dup := *issue
	if issue.Dependencies != nil {
		dup.Dependencies = append([]int(nil), issue.Dependencies...)
	}
	return &dup
}

// Equal reports field-for-field equality, comparing timestamps with
// time.Time.Equal so that wall-clock representation differences don't matter.
func (issue *Issue) Equal(other *Issue) bool {
	if issue.ID != other.ID ||
		issue.Title != other.Title ||
		issue.Description != other.Description ||
		issue.Status != other.Status ||
		!issue.CreatedAt.Equal(other.CreatedAt) ||
		!issue.UpdatedAt.Equal(other.UpdatedAt) ||
		len(issue.Dependencies) != len(other.Dependencies) {
		return false
	}
	for i, dep := range issue.Dependencies {
		if other.Dependencies[i] != dep {
			return false
		}
	}
	return true
}

// ValidationError indicates a field value that violates the record model.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// CorruptLogError indicates a record that failed to parse during load.
// Load aborts entirely rather than silently dropping data.
type CorruptLogError struct {
	Path string
	Line int
	Err  error
}

func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt log %s at line %d: %v", e.Path, e.Line, e.Err)
}

func (e *CorruptLogError) Unwrap() error { return e.Err }

// IntegrityWarning flags a non-fatal data-integrity condition: a dependency
// reference to an unknown ID, or an issue marked done while dependencies
// remain unmet. Warnings are surfaced to the caller but never block the
// requested state change.
type IntegrityWarning struct {
	IssueID int
	Missing []int // referenced dependency IDs not present in the store
	Unmet   []int // dependency IDs present but not done
}

func (w IntegrityWarning) String() string {
	var parts []string
	if len(w.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("references unknown issue(s) %v", w.Missing))
	}
	if len(w.Unmet) > 0 {
		parts = append(parts, fmt.Sprintf("has unmet dependencies %v", w.Unmet))
	}
	return fmt.Sprintf("issue %d %s", w.IssueID, strings.Join(parts, " and "))
}

// ListFilter specifies criteria for listing issues.
type ListFilter struct {
	Status    *Status // nil means any
	DependsOn *int    // nil means any; otherwise only issues depending on this ID
}

// Patch is an explicit optional-field update: only non-nil fields are
// applied. Dependencies, when set, replaces the whole dependency set.
type Patch struct {
	Title        *string
	Description  *string
	Status       *Status
	Dependencies *[]int
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Dependencies == nil
}

// WriteOpts adjusts how mutating operations treat dependency references to
// unknown IDs. The default is to reject them; with AllowMissingDeps the
// write succeeds and an IntegrityWarning is returned instead.
type WriteOpts struct {
	AllowMissingDeps bool
}

// DoneReport describes the side effects of marking an issue done.
type DoneReport struct {
	Warnings   []IntegrityWarning
	NewlyReady []int // dependents that became ready because of this close
	Blocked    []int // dependents that still have other unmet dependencies
}

// IssueStore defines the store facade contract the CLI consumes.
type IssueStore interface {
	// Create assigns an ID and timestamps to issue, defaults its status to
	// open, and durably appends it. Unknown dependency IDs are rejected
	// unless opts allow them, in which case warnings are returned.
	Create(ctx context.Context, issue *Issue, opts ...WriteOpts) ([]IntegrityWarning, error)

	// Get retrieves an issue by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int) (*Issue, error)

	// List returns issues matching the filter in ID order. Never fails on
	// an empty match.
	List(ctx context.Context, filter *ListFilter) ([]*Issue, error)

	// Update applies a partial patch, bumps updated_at, and durably appends
	// the superseding record. Returns ErrNotFound if the ID is absent, or a
	// ValidationError if the resulting state would be invalid.
	Update(ctx context.Context, id int, patch Patch, opts ...WriteOpts) (*Issue, []IntegrityWarning, error)

	// MarkDone transitions an issue to done. Closing out of order is
	// allowed but flagged in the report.
	MarkDone(ctx context.Context, id int) (*Issue, *DoneReport, error)

	// Ready returns issues that are not done and whose every dependency is
	// done, in ID order.
	Ready(ctx context.Context) ([]*Issue, error)

	// Integrity reports dependency references to unknown IDs anywhere in
	// the store.
	Integrity(ctx context.Context) ([]IntegrityWarning, error)

	// Close releases the store. All appends are already durably flushed, so
	// this is a no-op beyond releasing resources.
	Close() error
}
