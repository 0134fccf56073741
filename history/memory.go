package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps run histories in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

// Save stores or replaces a run.
func (s *MemoryStore) Save(_ context.Context, run *Run) error {
	if run == nil || run.RunID == "" {
		return ErrRunIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = run
	return nil
}

// Get returns a run by id.
func (s *MemoryStore) Get(_ context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, notFound(runID)
	}
	return run, nil
}

// ListByWorkflow returns the runs of a workflow, oldest first.
func (s *MemoryStore) ListByWorkflow(_ context.Context, workflow string) ([]*Run, error) {
	return s.list(func(r *Run) bool { return r.Workflow == workflow }), nil
}

// ListByStatus returns the runs with the given status, oldest first.
func (s *MemoryStore) ListByStatus(_ context.Context, status Status) ([]*Run, error) {
	return s.list(func(r *Run) bool {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.Status == status
	}), nil
}

// ListByTimeRange returns the runs started within [start, end], oldest first.
func (s *MemoryStore) ListByTimeRange(_ context.Context, start, end time.Time) ([]*Run, error) {
	return s.list(func(r *Run) bool {
		return !r.StartTime.Before(start) && !r.StartTime.After(end)
	}), nil
}

// Delete removes a run. Deleting an unknown run is not an error.
func (s *MemoryStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}

// Len returns the number of stored runs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

func (s *MemoryStore) list(keep func(*Run) bool) []*Run {
	s.mu.RLock()
	out := make([]*Run, 0)
	for _, r := range s.runs {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sortByStart(out)
	return out
}

func sortByStart(runs []*Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartTime.Equal(runs[j].StartTime) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
}
