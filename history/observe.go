package history

import (
	"context"
	"time"
)

// ObserveFunc receives the outcome of every store operation.
type ObserveFunc func(operation string, err error, duration time.Duration)

type observedStore struct {
	next    Store
	observe ObserveFunc
}

// Observe wraps store so that fn sees every operation. Operation names are
// save, get, list_by_workflow, list_by_status, list_by_time_range and
// delete.
func Observe(store Store, fn ObserveFunc) Store {
	if fn == nil {
		return store
	}
	return &observedStore{next: store, observe: fn}
}

func (s *observedStore) Save(ctx context.Context, run *Run) error {
	start := time.Now()
	err := s.next.Save(ctx, run)
	s.observe("save", err, time.Since(start))
	return err
}

func (s *observedStore) Get(ctx context.Context, runID string) (*Run, error) {
	start := time.Now()
	run, err := s.next.Get(ctx, runID)
	s.observe("get", err, time.Since(start))
	return run, err
}

func (s *observedStore) ListByWorkflow(ctx context.Context, workflow string) ([]*Run, error) {
	start := time.Now()
	runs, err := s.next.ListByWorkflow(ctx, workflow)
	s.observe("list_by_workflow", err, time.Since(start))
	return runs, err
}

func (s *observedStore) ListByStatus(ctx context.Context, status Status) ([]*Run, error) {
	start := time.Now()
	runs, err := s.next.ListByStatus(ctx, status)
	s.observe("list_by_status", err, time.Since(start))
	return runs, err
}

func (s *observedStore) ListByTimeRange(ctx context.Context, from, to time.Time) ([]*Run, error) {
	start := time.Now()
	runs, err := s.next.ListByTimeRange(ctx, from, to)
	s.observe("list_by_time_range", err, time.Since(start))
	return runs, err
}

func (s *observedStore) Delete(ctx context.Context, runID string) error {
	start := time.Now()
	err := s.next.Delete(ctx, runID)
	s.observe("delete", err, time.Since(start))
	return err
}
