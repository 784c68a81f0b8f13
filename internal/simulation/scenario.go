package simulation

import (
	"math/rand/v2"
	"time"

	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"github.com/AlexandreRouma/devoir1-info0952/internal/store"
)

// Scenario defines one run.
type Scenario struct {
	Name   string
	Params schelling.Params

	// Seed feeds the PCG generator. 0 picks a seed from the clock; the seed
	// actually used is reported in Result.Seed.
	Seed uint64

	// MaxSteps bounds the number of Step calls. 0 means no bound.
	MaxSteps int

	// OnStart, when non-nil, sees the grid right after it is built.
	OnStart func(g *schelling.Grid)

	// OnStep, when non-nil, is called after every step. The grid must not be
	// modified or retained.
	OnStep func(sr StepResult, g *schelling.Grid)
}

// StepResult captures the measurements of a single step.
type StepResult struct {
	Step int `json:"step"`

	// Unsatisfied is the value returned by Step: the number of unsatisfied
	// agents found before any agent moved.
	Unsatisfied int `json:"unsatisfied"`

	Empty      int     `json:"empty"`
	Similarity float64 `json:"similarity"`
}

// Result captures a whole run.
type Result struct {
	RunID    string           `json:"run_id,omitempty"`
	Name     string           `json:"name,omitempty"`
	Seed     uint64           `json:"seed"`
	Params   schelling.Params `json:"params"`
	Initial  schelling.Counts `json:"initial"`
	Steps    []StepResult     `json:"steps"`
	Duration time.Duration    `json:"duration_ns"`

	// Converged is true when no agent is unsatisfied on the final grid.
	Converged bool `json:"converged"`

	// Stalled is true when unsatisfied agents remain but none can move
	// because the grid has no empty cell.
	Stalled bool `json:"stalled"`

	// Cancelled is true when the context ended the run early.
	Cancelled bool `json:"cancelled"`

	FinalUnsatisfied int `json:"final_unsatisfied"`

	// Final is the grid in its last state. The caller owns it and should
	// Release it.
	Final *schelling.Grid `json:"-"`
}

// Summary converts the result into the summary stored by FinishRun.
func (r *Result) Summary(finishedAt time.Time) store.RunSummary {
	return store.RunSummary{
		Steps:            len(r.Steps),
		Converged:        r.Converged,
		FinalUnsatisfied: r.FinalUnsatisfied,
		FinishedAt:       finishedAt,
	}
}

// LastStep returns the final step, or false when no step ran.
func (r *Result) LastStep() (StepResult, bool) {
	if len(r.Steps) == 0 {
		return StepResult{}, false
	}
	return r.Steps[len(r.Steps)-1], true
}

// NewRand returns the generator used for a run seeded with seed. The same
// seed always yields the same sequence.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
