package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlexandreRouma/devoir1-info0952/internal/logging"
	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"github.com/AlexandreRouma/devoir1-info0952/internal/store"
)

// Runner executes scenarios. All of its dependencies are optional: a nil
// store records nothing, a nil logger discards, a nil tracer is a no-op.
type Runner struct {
	store  store.RunStore
	logger *slog.Logger
	tracer *logging.StepTracer
	now    func() time.Time
}

// NewRunner creates a runner.
func NewRunner(s store.RunStore, logger *slog.Logger, tracer *logging.StepTracer) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{store: s, logger: logger, tracer: tracer, now: time.Now}
}

// Run builds the scenario's grid and steps it until it converges, stalls,
// reaches MaxSteps, or ctx is cancelled. Cancellation is not an error: the
// partial result is returned with Cancelled set and the run is still closed
// in the store.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*Result, error) {
	if sc.MaxSteps < 0 {
		return nil, fmt.Errorf("%w: max steps must be non-negative, got %d", schelling.ErrInvalidParameters, sc.MaxSteps)
	}

	seed := sc.Seed
	if seed == 0 {
		seed = uint64(r.now().UnixNano())
	}
	rng := NewRand(seed)

	g, err := schelling.NewGrid(sc.Params, rng)
	if err != nil {
		return nil, fmt.Errorf("building grid: %w", err)
	}

	res := &Result{
		Name:    sc.Name,
		Seed:    seed,
		Params:  sc.Params,
		Initial: g.Counts(),
		Final:   g,
	}

	if r.store != nil {
		res.RunID, err = r.store.CreateRun(ctx, store.Run{
			CreatedAt: r.now(),
			Params:    sc.Params,
			Seed:      seed,
			Initial:   res.Initial,
		})
		if err != nil {
			g.Release()
			return nil, fmt.Errorf("recording run: %w", err)
		}
	}

	r.logger.Info("run started",
		"run_id", res.RunID,
		"height", sc.Params.Height,
		"width", sc.Params.Width,
		"ratio", sc.Params.SatisfactionRatio,
		"seed", seed,
		"empty", res.Initial.Empty,
		"type_a", res.Initial.TypeA,
		"type_b", res.Initial.TypeB,
	)

	if sc.OnStart != nil {
		sc.OnStart(g)
	}

	start := r.now()
	for sc.MaxSteps == 0 || len(res.Steps) < sc.MaxSteps {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		n := g.Step(rng)
		sr := StepResult{
			Step:        len(res.Steps),
			Unsatisfied: n,
			Empty:       g.EmptyCount(),
			Similarity:  g.Similarity(),
		}
		res.Steps = append(res.Steps, sr)

		if err := r.recordStep(ctx, res.RunID, sr); err != nil {
			g.Release()
			return nil, err
		}
		if sc.OnStep != nil {
			sc.OnStep(sr, g)
		}

		if n == 0 {
			break
		}
	}
	res.Duration = r.now().Sub(start)

	res.FinalUnsatisfied = g.Unsatisfied()
	res.Converged = res.FinalUnsatisfied == 0
	res.Stalled = !res.Converged && g.EmptyCount() == 0

	if r.store != nil {
		// the summary is written even when ctx was cancelled
		if err := r.store.FinishRun(context.WithoutCancel(ctx), res.RunID, res.Summary(r.now())); err != nil {
			g.Release()
			return nil, fmt.Errorf("closing run: %w", err)
		}
	}

	r.logger.Info("run finished",
		"run_id", res.RunID,
		"steps", len(res.Steps),
		"converged", res.Converged,
		"stalled", res.Stalled,
		"cancelled", res.Cancelled,
		"unsatisfied", res.FinalUnsatisfied,
		"duration", res.Duration,
	)

	return res, nil
}

func (r *Runner) recordStep(ctx context.Context, runID string, sr StepResult) error {
	r.logger.Log(ctx, logging.LevelTrace, "step",
		"run_id", runID,
		"step", sr.Step,
		"unsatisfied", sr.Unsatisfied,
		"similarity", sr.Similarity,
	)

	r.tracer.Record(logging.StepEvent{
		RunID:       runID,
		Step:        sr.Step,
		Unsatisfied: sr.Unsatisfied,
		Empty:       sr.Empty,
		Similarity:  sr.Similarity,
	})

	if r.store == nil {
		return nil
	}
	err := r.store.RecordStep(context.WithoutCancel(ctx), store.StepRecord{
		RunID:       runID,
		Step:        sr.Step,
		Unsatisfied: sr.Unsatisfied,
		Empty:       sr.Empty,
		Similarity:  sr.Similarity,
	})
	if err != nil {
		return fmt.Errorf("recording step %d: %w", sr.Step, err)
	}
	return nil
}
