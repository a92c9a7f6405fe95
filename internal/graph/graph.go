// Package graph maintains the in-memory dependency index over the issue set.
// The index is a pure projection of the issues: it is rebuilt from scratch on
// load and updated incrementally on each mutation, never persisted.
package graph

import (
	"sort"

	"ams/internal/issuestorage"
)

// Graph holds forward adjacency (issue → the IDs it depends on) and the
// reverse mapping (issue → the IDs that depend on it).
type Graph struct {
	deps       map[int][]int
	dependents map[int]map[int]bool
	status     map[int]issuestorage.Status
}

// Build constructs the index with one pass over the loaded issue set.
func Build(issues map[int]*issuestorage.Issue) *Graph {
	g := &Graph{
		deps:       make(map[int][]int, len(issues)),
		dependents: make(map[int]map[int]bool),
		status:     make(map[int]issuestorage.Status, len(issues)),
	}
	for _, issue := range issues {
		g.Upsert(issue)
	}
	return g
}

// Upsert replaces the edges and status for one issue. Old edges are detached
// first so dependency-set changes invalidate stale reverse entries.
func (g *Graph) Upsert(issue *issuestorage.Issue) {
	for _, old := range g.deps[issue.ID] {
		delete(g.dependents[old], issue.ID)
	}

	g.deps[issue.ID] = append([]int(nil), issue.Dependencies...)
	g.status[issue.ID] = issue.Status

	for _, dep := range issue.Dependencies {
		if g.dependents[dep] == nil {
			g.dependents[dep] = make(map[int]bool)
		}
		g.dependents[dep][issue.ID] = true
	}
}

// Has reports whether the ID is present in the index.
func (g *Graph) Has(id int) bool {
	_, ok := g.status[id]
	return ok
}

// Dependents returns the IDs that depend on id, sorted. Used to report which
// issues a done-transition newly unblocked.
func (g *Graph) Dependents(id int) []int {
	set := g.dependents[id]
	if len(set) == 0 {
		return nil
	}
	ids := make([]int, 0, len(set))
	for dep := range set {
		ids = append(ids, dep)
	}
	sort.Ints(ids)
	return ids
}

// IsReady reports whether the issue is not done and every one of its
// dependencies exists and is done. Unknown dependency IDs make the issue
// not ready (they are flagged via MissingDeps, not crashed on), and members
// of a dependency cycle are by construction never ready.
func (g *Graph) IsReady(id int) bool {
	status, ok := g.status[id]
	if !ok || status == issuestorage.StatusDone {
		return false
	}
	for _, dep := range g.deps[id] {
		if g.status[dep] != issuestorage.StatusDone {
			return false
		}
	}
	return true
}

// Ready returns the IDs of all ready issues, sorted.
func (g *Graph) Ready() []int {
	var ids []int
	for id := range g.status {
		if g.IsReady(id) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// MissingDeps returns the dependency IDs of id that are absent from the
// store, sorted.
func (g *Graph) MissingDeps(id int) []int {
	var missing []int
	for _, dep := range g.deps[id] {
		if !g.Has(dep) {
			missing = append(missing, dep)
		}
	}
	sort.Ints(missing)
	return missing
}

// UnmetDeps returns the dependency IDs of id that exist but are not done,
// sorted.
func (g *Graph) UnmetDeps(id int) []int {
	var unmet []int
	for _, dep := range g.deps[id] {
		if status, ok := g.status[dep]; ok && status != issuestorage.StatusDone {
			unmet = append(unmet, dep)
		}
	}
	sort.Ints(unmet)
	return unmet
}
