package simulation

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/AlexandreRouma/devoir1-info0952/internal/logging"
	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"github.com/AlexandreRouma/devoir1-info0952/internal/store"
)

var mixedParams = schelling.Params{
	Height:            16,
	Width:             16,
	ProbTypeA:         0.4,
	ProbTypeB:         0.4,
	SatisfactionRatio: 0.5,
}

func TestRun_AllSatisfiedConvergesInOneStep(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	p := mixedParams
	p.SatisfactionRatio = 0 // same/counted < 0 never holds

	res, err := r.Run(context.Background(), Scenario{Params: p, Seed: 3, MaxSteps: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	if len(res.Steps) != 1 {
		t.Fatalf("len(Steps) = %d, want 1", len(res.Steps))
	}
	if res.Steps[0].Unsatisfied != 0 {
		t.Errorf("Steps[0].Unsatisfied = %d, want 0", res.Steps[0].Unsatisfied)
	}
	AssertConverged(t, res, 1)
	if res.Stalled || res.Cancelled {
		t.Errorf("Stalled = %v, Cancelled = %v, want false", res.Stalled, res.Cancelled)
	}
}

func TestRun_ConservesPopulation(t *testing.T) {
	r := NewRunner(nil, nil, nil)

	res, err := r.Run(context.Background(), Scenario{
		Params:   mixedParams,
		Seed:     11,
		MaxSteps: 40,
		OnStep: func(sr StepResult, g *schelling.Grid) {
			AssertEmptyCountConsistent(t, g)
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	AssertConserved(t, res)
	for _, sr := range res.Steps {
		if sr.Empty != res.Initial.Empty {
			t.Errorf("step %d: Empty = %d, want %d", sr.Step, sr.Empty, res.Initial.Empty)
		}
	}
}

func TestRun_ScanCountMatchesPreviousState(t *testing.T) {
	r := NewRunner(nil, nil, nil)

	var after []int
	res, err := r.Run(context.Background(), Scenario{
		Params:   mixedParams,
		Seed:     5,
		MaxSteps: 25,
		OnStep: func(sr StepResult, g *schelling.Grid) {
			after = append(after, g.Unsatisfied())
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	// each step reports what the previous one left behind
	for i := 1; i < len(res.Steps); i++ {
		if res.Steps[i].Unsatisfied != after[i-1] {
			t.Errorf("Steps[%d].Unsatisfied = %d, want %d", i, res.Steps[i].Unsatisfied, after[i-1])
		}
	}
	if got := after[len(after)-1]; got != res.FinalUnsatisfied {
		t.Errorf("FinalUnsatisfied = %d, want %d", res.FinalUnsatisfied, got)
	}
}

func TestRun_MaxStepsBound(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	p := mixedParams
	p.SatisfactionRatio = 1

	res, err := r.Run(context.Background(), Scenario{Params: p, Seed: 9, MaxSteps: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	if len(res.Steps) > 5 {
		t.Errorf("len(Steps) = %d, want at most 5", len(res.Steps))
	}
	if !res.Converged && len(res.Steps) != 5 {
		t.Errorf("unconverged run stopped after %d steps, want 5", len(res.Steps))
	}
}

func TestRun_Deterministic(t *testing.T) {
	run := func() *Result {
		res, err := NewRunner(nil, nil, nil).Run(context.Background(), Scenario{Params: mixedParams, Seed: 42, MaxSteps: 30})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return res
	}

	a, b := run(), run()
	defer a.Final.Release()
	defer b.Final.Release()

	if !slices.Equal(a.Steps, b.Steps) {
		t.Errorf("step series differ:\n%v\n%v", a.Steps, b.Steps)
	}
	if !slices.Equal(a.Final.Cells(), b.Final.Cells()) {
		t.Error("final grids differ for the same seed")
	}
}

func TestRun_FullGridStops(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	p := schelling.Params{Height: 6, Width: 6, ProbTypeA: 0.5, ProbTypeB: 0.5, SatisfactionRatio: 0.9}

	res, err := r.Run(context.Background(), Scenario{Params: p, Seed: 2, MaxSteps: 100})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	if len(res.Steps) != 1 || res.Steps[0].Unsatisfied != 0 {
		t.Fatalf("Steps = %v, want a single zero step", res.Steps)
	}
	if res.Stalled != (res.FinalUnsatisfied > 0) {
		t.Errorf("Stalled = %v with %d unsatisfied", res.Stalled, res.FinalUnsatisfied)
	}
	if res.Converged == res.Stalled {
		t.Errorf("Converged = %v, Stalled = %v, want exactly one", res.Converged, res.Stalled)
	}
}

func TestRun_SingleTypeGridConverges(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	p := schelling.Params{Height: 8, Width: 8, ProbTypeA: 0.7, ProbTypeB: 0, SatisfactionRatio: 1}

	res, err := r.Run(context.Background(), Scenario{Params: p, Seed: 4, MaxSteps: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	AssertConverged(t, res, 1)
	if res.Initial.TypeB != 0 {
		t.Errorf("Initial.TypeB = %d, want 0", res.Initial.TypeB)
	}
}

func TestRun_InvalidParameters(t *testing.T) {
	r := NewRunner(nil, nil, nil)

	tests := []struct {
		name string
		sc   Scenario
	}{
		{"overcommitted probabilities", Scenario{Params: schelling.Params{Height: 4, Width: 4, ProbTypeA: 0.7, ProbTypeB: 0.7}}},
		{"zero height", Scenario{Params: schelling.Params{Height: 0, Width: 4}}},
		{"negative max steps", Scenario{Params: mixedParams, MaxSteps: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Run(context.Background(), tt.sc)
			if !errors.Is(err, schelling.ErrInvalidParameters) {
				t.Errorf("Run() error = %v, want ErrInvalidParameters", err)
			}
			if res != nil {
				t.Error("Run() returned a result alongside an error")
			}
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	s := store.NewInMemoryRunStore()
	r := NewRunner(s, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx, Scenario{Params: mixedParams, Seed: 1, MaxSteps: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	if !res.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if len(res.Steps) != 0 {
		t.Errorf("len(Steps) = %d, want 0", len(res.Steps))
	}

	run, err := s.GetRun(context.Background(), res.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun() = %v, %v", run, err)
	}
	if !run.Finished() {
		t.Error("cancelled run was not closed in the store")
	}
}

func TestRun_RecordsToStore(t *testing.T) {
	s := store.NewInMemoryRunStore()
	r := NewRunner(s, nil, nil)
	ctx := context.Background()

	res, err := r.Run(ctx, Scenario{Params: mixedParams, Seed: 17, MaxSteps: 20})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	if res.RunID == "" {
		t.Fatal("RunID is empty")
	}

	run, err := s.GetRun(ctx, res.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun() = %v, %v", run, err)
	}
	if run.Seed != 17 {
		t.Errorf("run.Seed = %d, want 17", run.Seed)
	}
	if run.Initial != res.Initial {
		t.Errorf("run.Initial = %+v, want %+v", run.Initial, res.Initial)
	}
	if run.Steps != len(res.Steps) || run.Converged != res.Converged || run.FinalUnsatisfied != res.FinalUnsatisfied {
		t.Errorf("stored summary %+v does not match result", run)
	}

	steps, err := s.ListSteps(ctx, res.RunID)
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	if len(steps) != len(res.Steps) {
		t.Fatalf("len(steps) = %d, want %d", len(steps), len(res.Steps))
	}
	for i, rec := range steps {
		if rec.Unsatisfied != res.Steps[i].Unsatisfied || rec.Similarity != res.Steps[i].Similarity {
			t.Errorf("steps[%d] = %+v, want %+v", i, rec, res.Steps[i])
		}
	}
}

func TestRun_WritesStepTrace(t *testing.T) {
	dir := t.TempDir()
	tracer := logging.NewStepTracer(dir, "debug")
	if tracer == nil {
		t.Fatal("NewStepTracer() returned nil at debug level")
	}
	r := NewRunner(nil, nil, tracer)

	res, err := r.Run(context.Background(), Scenario{Params: mixedParams, Seed: 8, MaxSteps: 6})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()
	tracer.Close()

	f, err := os.Open(filepath.Join(dir, logging.TraceFile))
	if err != nil {
		t.Fatalf("opening trace: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if lines != len(res.Steps) {
		t.Errorf("trace has %d lines, want %d", lines, len(res.Steps))
	}
}

func TestRun_LogsSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(nil, logging.NewLogger("trace", &buf), nil)

	res, err := r.Run(context.Background(), Scenario{Params: mixedParams, Seed: 6, MaxSteps: 3})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	out := buf.String()
	for _, want := range []string{"run started", "run finished", "level=TRACE msg=step"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_ClockSeed(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	fixed := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	res, err := r.Run(context.Background(), Scenario{Params: mixedParams, MaxSteps: 1})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	if res.Seed != uint64(fixed.UnixNano()) {
		t.Errorf("Seed = %d, want %d", res.Seed, uint64(fixed.UnixNano()))
	}
}

func TestRun_StoreUsesRunnerClock(t *testing.T) {
	s := store.NewInMemoryRunStore()
	r := NewRunner(s, nil, nil)
	fixed := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	res, err := r.Run(context.Background(), Scenario{Params: mixedParams, Seed: 3, MaxSteps: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	run, err := s.GetRun(context.Background(), res.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun() = %v, %v", run, err)
	}
	if !run.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", run.CreatedAt, fixed)
	}
	if run.FinishedAt == nil || !run.FinishedAt.Equal(fixed) {
		t.Errorf("FinishedAt = %v, want %v", run.FinishedAt, fixed)
	}
	if res.Duration != 0 {
		t.Errorf("Duration = %v with a fixed clock, want 0", res.Duration)
	}
}

func TestRun_Callbacks(t *testing.T) {
	r := NewRunner(nil, nil, nil)

	started := 0
	var seen []int
	res, err := r.Run(context.Background(), Scenario{
		Params:   mixedParams,
		Seed:     12,
		MaxSteps: 4,
		OnStart:  func(g *schelling.Grid) { started++ },
		OnStep:   func(sr StepResult, g *schelling.Grid) { seen = append(seen, sr.Step) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer res.Final.Release()

	if started != 1 {
		t.Errorf("OnStart called %d times, want 1", started)
	}
	if len(seen) != len(res.Steps) {
		t.Fatalf("OnStep called %d times, want %d", len(seen), len(res.Steps))
	}
	for i, step := range seen {
		if step != i {
			t.Errorf("OnStep #%d saw step %d", i, step)
		}
	}
}

func TestResult_LastStep(t *testing.T) {
	var res Result
	if _, ok := res.LastStep(); ok {
		t.Error("LastStep() on empty result reported ok")
	}
	res.Steps = []StepResult{{Step: 0, Unsatisfied: 4}, {Step: 1, Unsatisfied: 0}}
	last, ok := res.LastStep()
	if !ok || last.Step != 1 {
		t.Errorf("LastStep() = %+v, %v", last, ok)
	}
}

func TestNewRand_Deterministic(t *testing.T) {
	a, b := NewRand(99), NewRand(99)
	for i := 0; i < 16; i++ {
		if x, y := a.Uint64(), b.Uint64(); x != y {
			t.Fatalf("draw %d differs: %d != %d", i, x, y)
		}
	}
}
