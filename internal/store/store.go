// Package store records simulation runs and their per-step metrics.
//
// Only run parameters and aggregate measurements are stored; grid contents
// are never persisted.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
)

// ErrRunNotFound is returned when an operation names a run that does not exist.
var ErrRunNotFound = errors.New("run not found")

// ErrStoreClosed is returned by every operation after Close.
var ErrStoreClosed = errors.New("run store is closed")

// Run is one recorded simulation run.
type Run struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Params    schelling.Params `json:"params"`
	Seed      uint64           `json:"seed"`

	// Initial holds the cell counts right after the grid was built.
	Initial schelling.Counts `json:"initial"`

	// Summary fields, filled by FinishRun.
	Steps            int        `json:"steps"`
	Converged        bool       `json:"converged"`
	FinalUnsatisfied int        `json:"final_unsatisfied"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether FinishRun has been called for the run.
func (r Run) Finished() bool {
	return r.FinishedAt != nil
}

// StepRecord holds the measurements taken for one step of a run.
type StepRecord struct {
	RunID       string  `json:"run_id"`
	Step        int     `json:"step"`
	Unsatisfied int     `json:"unsatisfied"`
	Empty       int     `json:"empty"`
	Similarity  float64 `json:"similarity"`
}

// RunSummary closes a run.
type RunSummary struct {
	Steps            int
	Converged        bool
	FinalUnsatisfied int
	FinishedAt       time.Time
}

// RunStore defines the interface for recording and querying runs.
type RunStore interface {
	// CreateRun stores a new run and returns its ID. An empty run.ID is
	// replaced with a fresh UUID and a zero CreatedAt with the current time.
	CreateRun(ctx context.Context, run Run) (string, error)

	// RecordStep appends the metrics of one step. Returns ErrRunNotFound
	// when the run does not exist.
	RecordStep(ctx context.Context, rec StepRecord) error

	// FinishRun stores the run summary. Returns ErrRunNotFound when the run
	// does not exist.
	FinishRun(ctx context.Context, runID string, summary RunSummary) error

	// GetRun retrieves a run by ID. Returns nil if not found.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns returns runs newest first. limit <= 0 returns all runs.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// ListSteps returns the step records of a run in step order.
	ListSteps(ctx context.Context, runID string) ([]StepRecord, error)

	// DeleteRun removes a run and its steps. Returns ErrRunNotFound when
	// the run does not exist.
	DeleteRun(ctx context.Context, runID string) error

	// Close releases resources held by the store. Later calls to the other
	// methods return ErrStoreClosed; closing again is a no-op.
	Close() error
}
