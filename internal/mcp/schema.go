package mcp

import (
	"time"

	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
)

// CreateInput defines the input for schelling_create.
type CreateInput struct {
	Height            int     `json:"height" jsonschema:"Number of rows (at least 1)"`
	Width             int     `json:"width" jsonschema:"Number of columns (at least 1)"`
	ProbTypeA         float64 `json:"prob_type_a" jsonschema:"Probability that a cell starts with a type A agent"`
	ProbTypeB         float64 `json:"prob_type_b" jsonschema:"Probability that a cell starts with a type B agent; prob_type_a + prob_type_b must not exceed 1"`
	SatisfactionRatio float64 `json:"satisfaction_ratio" jsonschema:"Minimum share of same-type occupied neighbors an agent needs to stay"`
	Seed              uint64  `json:"seed,omitempty" jsonschema:"Random seed; 0 picks one from the clock"`
}

func (in CreateInput) params() schelling.Params {
	return schelling.Params{
		Height:            in.Height,
		Width:             in.Width,
		ProbTypeA:         in.ProbTypeA,
		ProbTypeB:         in.ProbTypeB,
		SatisfactionRatio: in.SatisfactionRatio,
	}
}

// CreateOutput defines the output for schelling_create.
type CreateOutput struct {
	SessionID   string           `json:"session_id" jsonschema:"Session to pass to the other tools"`
	Seed        uint64           `json:"seed" jsonschema:"Seed actually used"`
	Counts      schelling.Counts `json:"counts" jsonschema:"Initial number of empty cells and agents of each type"`
	Unsatisfied int              `json:"unsatisfied" jsonschema:"Number of unsatisfied agents in the initial grid"`
}

// StepInput defines the input for schelling_step.
type StepInput struct {
	SessionID string `json:"session_id" jsonschema:"Session returned by schelling_create"`
	Steps     int    `json:"steps,omitempty" jsonschema:"Maximum number of steps to run (default 1); stops early once nobody moves"`
}

// StepCount is the result of one step.
type StepCount struct {
	Step        int `json:"step" jsonschema:"Step number within the session, starting at 0"`
	Unsatisfied int `json:"unsatisfied" jsonschema:"Unsatisfied agents found at the start of the step"`
}

// StepOutput defines the output for schelling_step.
type StepOutput struct {
	SessionID   string      `json:"session_id"`
	Results     []StepCount `json:"results" jsonschema:"One entry per step run"`
	TotalSteps  int         `json:"total_steps" jsonschema:"Steps run in this session so far"`
	Unsatisfied int         `json:"unsatisfied" jsonschema:"Unsatisfied agents after the last step"`
	Converged   bool        `json:"converged" jsonschema:"True when no agent is unsatisfied"`
}

// CellInput defines the input for schelling_cell.
type CellInput struct {
	SessionID string `json:"session_id" jsonschema:"Session returned by schelling_create"`
	Row       int    `json:"row" jsonschema:"Row index, starting at 0"`
	Col       int    `json:"col" jsonschema:"Column index, starting at 0"`
}

// CellOutput defines the output for schelling_cell.
type CellOutput struct {
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	Type        string `json:"type" jsonschema:"Cell content: empty, a or b"`
	Unsatisfied bool   `json:"unsatisfied" jsonschema:"Whether the agent would move; always false for an empty cell"`
}

// GridInput defines the input for schelling_grid.
type GridInput struct {
	SessionID string `json:"session_id" jsonschema:"Session returned by schelling_create"`
}

// GridOutput defines the output for schelling_grid.
type GridOutput struct {
	SessionID   string           `json:"session_id"`
	Height      int              `json:"height"`
	Width       int              `json:"width"`
	Rows        []string         `json:"rows" jsonschema:"Grid rows using A and B for agents and . for empty cells"`
	Counts      schelling.Counts `json:"counts"`
	Unsatisfied int              `json:"unsatisfied"`
	Similarity  float64          `json:"similarity" jsonschema:"Mean share of same-type neighbors over agents with neighbors"`
	Steps       int              `json:"steps" jsonschema:"Steps run in this session so far"`
}

// DestroyInput defines the input for schelling_destroy.
type DestroyInput struct {
	SessionID string `json:"session_id" jsonschema:"Session to release"`
}

// DestroyOutput defines the output for schelling_destroy.
type DestroyOutput struct {
	SessionID string `json:"session_id"`
	Destroyed bool   `json:"destroyed"`
}

// RunInput defines the input for schelling_run.
type RunInput struct {
	Height            int     `json:"height" jsonschema:"Number of rows (at least 1)"`
	Width             int     `json:"width" jsonschema:"Number of columns (at least 1)"`
	ProbTypeA         float64 `json:"prob_type_a" jsonschema:"Probability that a cell starts with a type A agent"`
	ProbTypeB         float64 `json:"prob_type_b" jsonschema:"Probability that a cell starts with a type B agent; prob_type_a + prob_type_b must not exceed 1"`
	SatisfactionRatio float64 `json:"satisfaction_ratio" jsonschema:"Minimum share of same-type occupied neighbors an agent needs to stay"`
	Seed              uint64  `json:"seed,omitempty" jsonschema:"Random seed; 0 picks one from the clock"`
	MaxSteps          int     `json:"max_steps,omitempty" jsonschema:"Upper bound on the number of steps (default 1000)"`
}

func (in RunInput) params() schelling.Params {
	return schelling.Params{
		Height:            in.Height,
		Width:             in.Width,
		ProbTypeA:         in.ProbTypeA,
		ProbTypeB:         in.ProbTypeB,
		SatisfactionRatio: in.SatisfactionRatio,
	}
}

// RunOutput defines the output for schelling_run.
type RunOutput struct {
	RunID            string           `json:"run_id" jsonschema:"ID of the run in the history"`
	Seed             uint64           `json:"seed"`
	Initial          schelling.Counts `json:"initial"`
	Steps            int              `json:"steps"`
	Converged        bool             `json:"converged" jsonschema:"True when no agent is unsatisfied at the end"`
	Stalled          bool             `json:"stalled" jsonschema:"True when unsatisfied agents remain but there is no empty cell"`
	FinalUnsatisfied int              `json:"final_unsatisfied"`
	FinalSimilarity  float64          `json:"final_similarity"`
}

// HistoryInput defines the input for schelling_history.
type HistoryInput struct {
	RunID string `json:"run_id,omitempty" jsonschema:"Run to show step by step; empty lists recent runs"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to list (default 20)"`
}

// HistoryRun is a list view of a recorded run.
type HistoryRun struct {
	ID                string    `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	Height            int       `json:"height"`
	Width             int       `json:"width"`
	SatisfactionRatio float64   `json:"satisfaction_ratio"`
	Seed              uint64    `json:"seed"`
	Steps             int       `json:"steps"`
	Converged         bool      `json:"converged"`
	FinalUnsatisfied  int       `json:"final_unsatisfied"`
	Finished          bool      `json:"finished"`
}

// HistoryStep is one recorded step.
type HistoryStep struct {
	Step        int     `json:"step"`
	Unsatisfied int     `json:"unsatisfied"`
	Empty       int     `json:"empty"`
	Similarity  float64 `json:"similarity"`
}

// HistoryOutput defines the output for schelling_history.
type HistoryOutput struct {
	Runs  []HistoryRun  `json:"runs" jsonschema:"Recorded runs, newest first, or the single requested run"`
	Steps []HistoryStep `json:"steps,omitempty" jsonschema:"Per-step metrics of the requested run"`
	Count int           `json:"count"`
}
