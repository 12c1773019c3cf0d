// Package server contains the LSP master, the worker process handles, and the
// worker side servers. The master multiplexes one client session across a pool
// of isolated worker processes: one for interactive queries, one for signature
// watching, and N for batch checking.
package server

import (
	"encoding/json"
	"hash/fnv"
	"sort"

	"github.com/google/uuid"
)

type (
	// TypeCheckController tracks which files are dirty and which are open in the
	// editor, and assigns files to code workers by stable hashing. It is touched
	// only from the master event loop and needs no locking.
	TypeCheckController struct {
		workers  int
		changed  map[string]struct{}
		priority map[string]struct{}
	}

	// CheckRequest records one in flight batch check: its GUID, the per worker
	// assignment, the completion counters, and the client request to respond to
	// once the batch finishes.
	CheckRequest struct {
		GUID        string
		ClientID    json.RawMessage
		Assignments [][]string
		Completed   int
		Total       int
		pending     map[string]int
	}
)

// NewTypeCheckController returns a controller assigning paths across the given
// number of code workers.
func NewTypeCheckController(workers int) *TypeCheckController {
	if workers < 1 {
		workers = 1
	}
	return &TypeCheckController{
		workers:  workers,
		changed:  map[string]struct{}{},
		priority: map[string]struct{}{},
	}
}

// PushChange marks a path as needing a recheck.
func (c *TypeCheckController) PushChange(path string) {
	c.changed[path] = struct{}{}
}

// UpdatePriority maintains the set of paths open in the editor. Priority paths
// are dispatched before all others.
func (c *TypeCheckController) UpdatePriority(opened, closed []string) {
	for _, path := range opened {
		c.priority[path] = struct{}{}
	}
	for _, path := range closed {
		delete(c.priority, path)
	}
}

// MakeRequest atomically drains the changed set and builds a new request
// assigning every dirty path to a worker. Unfinished paths of the previous
// request are carried over. Returns nil when there is nothing to check.
func (c *TypeCheckController) MakeRequest(last *CheckRequest) *CheckRequest {
	pool := map[string]struct{}{}
	for path := range c.changed {
		pool[path] = struct{}{}
	}
	c.changed = map[string]struct{}{}
	if last != nil {
		for path := range last.pending {
			pool[path] = struct{}{}
		}
	}
	if len(pool) == 0 {
		return nil
	}

	request := &CheckRequest{
		GUID:        uuid.NewString(),
		Assignments: make([][]string, c.workers),
		pending:     map[string]int{},
	}

	// priority paths first, each group in lexicographic order for deterministic
	// assignment and dispatch
	prioritized, rest := []string{}, []string{}
	for path := range pool {
		if _, isPriority := c.priority[path]; isPriority {
			prioritized = append(prioritized, path)
		} else {
			rest = append(rest, path)
		}
	}
	sort.Strings(prioritized)
	sort.Strings(rest)
	for _, path := range append(prioritized, rest...) {
		worker := assignWorker(path, c.workers)
		request.Assignments[worker] = append(request.Assignments[worker], path)
		request.pending[path] = worker
		request.Total++
	}
	return request
}

// WorkerCount reports how many code workers paths are assigned across.
func (c *TypeCheckController) WorkerCount() int { return c.workers }

// assignWorker maps a path to a worker index with a stable hash so assignments
// are reproducible across runs.
func assignWorker(path string, workers int) int {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(path))
	return int(hash.Sum32()) % workers
}

// MarkCompleted records a finished path and reports whether it was part of the
// request. Paths outside the assignment leave the counters untouched.
func (r *CheckRequest) MarkCompleted(path string) bool {
	if _, waiting := r.pending[path]; !waiting {
		return false
	}
	delete(r.pending, path)
	r.Completed++
	return true
}

// Finished reports whether every assigned path has completed.
func (r *CheckRequest) Finished() bool { return r.Completed == r.Total }

// Percentage is the completed share of the batch, floored.
func (r *CheckRequest) Percentage() int {
	if r.Total == 0 {
		return 100
	}
	return 100 * r.Completed / r.Total
}

// PendingFor returns the unfinished paths assigned to the given worker, used to
// requeue work when a worker dies.
func (r *CheckRequest) PendingFor(worker int) []string {
	paths := []string{}
	for path, assigned := range r.pending {
		if assigned == worker {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// Reassign moves a pending path to another worker.
func (r *CheckRequest) Reassign(path string, worker int) {
	if _, waiting := r.pending[path]; waiting {
		r.pending[path] = worker
		r.Assignments[worker] = append(r.Assignments[worker], path)
	}
}
