package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRunStore implements RunStore for tests and runs with storage disabled.
type InMemoryRunStore struct {
	mu     sync.RWMutex
	runs   map[string]Run
	steps  map[string][]StepRecord
	closed bool
}

// NewInMemoryRunStore creates an empty in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs:  make(map[string]Run),
		steps: make(map[string][]StepRecord),
	}
}

// CreateRun stores a new run.
func (s *InMemoryRunStore) CreateRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, exists := s.runs[run.ID]; exists {
		return "", fmt.Errorf("run already exists: %s", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	s.runs[run.ID] = run
	return run.ID, nil
}

// RecordStep appends the metrics of one step.
func (s *InMemoryRunStore) RecordStep(ctx context.Context, rec StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, exists := s.runs[rec.RunID]; !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, rec.RunID)
	}
	for _, existing := range s.steps[rec.RunID] {
		if existing.Step == rec.Step {
			return fmt.Errorf("step %d already recorded for run %s", rec.Step, rec.RunID)
		}
	}
	s.steps[rec.RunID] = append(s.steps[rec.RunID], rec)
	return nil
}

// FinishRun stores the run summary.
func (s *InMemoryRunStore) FinishRun(ctx context.Context, runID string, summary RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	run, exists := s.runs[runID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	finishedAt := summary.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	run.Steps = summary.Steps
	run.Converged = summary.Converged
	run.FinalUnsatisfied = summary.FinalUnsatisfied
	run.FinishedAt = &finishedAt

	s.runs[runID] = run
	return nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *InMemoryRunStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	run, exists := s.runs[runID]
	if !exists {
		return nil, nil
	}
	return &run, nil
}

// ListRuns returns runs newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	runs := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	slices.SortFunc(runs, func(a, b Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ListSteps returns the step records of a run in step order.
func (s *InMemoryRunStore) ListSteps(ctx context.Context, runID string) ([]StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	steps := slices.Clone(s.steps[runID])
	slices.SortFunc(steps, func(a, b StepRecord) int { return a.Step - b.Step })
	return steps, nil
}

// DeleteRun removes a run and its steps.
func (s *InMemoryRunStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, exists := s.runs[runID]; !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	delete(s.runs, runID)
	delete(s.steps, runID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
