package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/AlexandreRouma/devoir1-info0952/internal/config"
	"github.com/AlexandreRouma/devoir1-info0952/internal/logging"
	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"github.com/AlexandreRouma/devoir1-info0952/internal/simulation"
	"github.com/AlexandreRouma/devoir1-info0952/internal/store"
	"github.com/spf13/cobra"
)

// runOutput is the --json form of a finished run.
type runOutput struct {
	RunID            string           `json:"run_id,omitempty"`
	Seed             uint64           `json:"seed"`
	Params           schelling.Params `json:"params"`
	Initial          schelling.Counts `json:"initial"`
	Steps            int              `json:"steps"`
	Converged        bool             `json:"converged"`
	Stalled          bool             `json:"stalled"`
	Cancelled        bool             `json:"cancelled"`
	FinalUnsatisfied int              `json:"final_unsatisfied"`
	FinalSimilarity  float64          `json:"final_similarity"`
	DurationMs       int64            `json:"duration_ms"`
	Grid             []string         `json:"grid,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation until it converges",
		Long: `Build a random grid and step it until no agent is unsatisfied,
no agent can move, --max-steps is reached, or the process is interrupted.

Flags override the configuration file.

Examples:
  schelling run                                  # Use ~/.schelling/config.yaml
  schelling run --height 20 --width 60 --ratio 0.3
  schelling run --seed 42 --render-every 10      # Print the grid every 10 steps
  schelling run --no-store --json                # Do not record the run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showGrid, _ := cmd.Flags().GetBool("show-grid")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := newLogger(cfg)

			var runStore store.RunStore
			var tracer *logging.StepTracer
			if cfg.Storage.Enabled {
				sqliteStore, err := store.NewSQLiteRunStore(cfg.Storage.Dir)
				if err != nil {
					return fmt.Errorf("failed to open run store: %w", err)
				}
				defer sqliteStore.Close()
				runStore = sqliteStore
				tracer = logging.NewStepTracer(cfg.Storage.Dir, cfg.Logging.Level)
				defer tracer.Close()
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			sc := simulation.Scenario{
				Params:   cfg.Params(),
				Seed:     cfg.Run.Seed,
				MaxSteps: cfg.Run.MaxSteps,
			}
			if !jsonOut && cfg.Run.RenderEvery > 0 {
				every := cfg.Run.RenderEvery
				sc.OnStart = func(g *schelling.Grid) {
					fmt.Fprintln(out, "initial grid:")
					renderGrid(out, g)
					fmt.Fprintln(out)
				}
				sc.OnStep = func(sr simulation.StepResult, g *schelling.Grid) {
					if (sr.Step+1)%every != 0 {
						return
					}
					renderGrid(out, g)
					renderStatus(out, sr)
					fmt.Fprintln(out)
				}
			}

			res, err := simulation.NewRunner(runStore, logger, tracer).Run(ctx, sc)
			if err != nil {
				return err
			}
			defer res.Final.Release()

			result := runOutput{
				RunID:            res.RunID,
				Seed:             res.Seed,
				Params:           res.Params,
				Initial:          res.Initial,
				Steps:            len(res.Steps),
				Converged:        res.Converged,
				Stalled:          res.Stalled,
				Cancelled:        res.Cancelled,
				FinalUnsatisfied: res.FinalUnsatisfied,
				FinalSimilarity:  res.Final.Similarity(),
				DurationMs:       res.Duration.Milliseconds(),
			}
			if showGrid {
				result.Grid = res.Final.Rows()
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(result)
			}

			if showGrid {
				fmt.Fprintln(out, "final grid:")
				renderGrid(out, res.Final)
				fmt.Fprintln(out)
			}
			printRunSummary(out, result)
			if cfg.Storage.Enabled {
				fmt.Fprintf(out, "\nRecorded in %s\n", filepath.Join(cfg.Storage.Dir, store.DBFile))
			}
			return nil
		},
	}

	cmd.Flags().Int("height", 0, "Number of rows")
	cmd.Flags().Int("width", 0, "Number of columns")
	cmd.Flags().Float64("prob-a", 0, "Probability that a cell starts with a type A agent")
	cmd.Flags().Float64("prob-b", 0, "Probability that a cell starts with a type B agent")
	cmd.Flags().Float64("ratio", 0, "Satisfaction ratio (0.0-1.0)")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks one from the clock)")
	cmd.Flags().Int("max-steps", 0, "Stop after this many steps (0 means no limit)")
	cmd.Flags().Int("render-every", 0, "Print the grid every N steps")
	cmd.Flags().Bool("show-grid", false, "Print the final grid")
	cmd.Flags().Bool("no-store", false, "Do not record the run")
	cmd.Flags().String("data-dir", "", "Directory holding schelling.db (overrides storage.dir)")

	return cmd
}

// applyRunFlags copies the flags the user set onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.SchellingConfig) {
	flags := cmd.Flags()
	if flags.Changed("height") {
		cfg.Grid.Height, _ = flags.GetInt("height")
	}
	if flags.Changed("width") {
		cfg.Grid.Width, _ = flags.GetInt("width")
	}
	if flags.Changed("prob-a") {
		cfg.Grid.ProbTypeA, _ = flags.GetFloat64("prob-a")
	}
	if flags.Changed("prob-b") {
		cfg.Grid.ProbTypeB, _ = flags.GetFloat64("prob-b")
	}
	if flags.Changed("ratio") {
		cfg.Grid.SatisfactionRatio, _ = flags.GetFloat64("ratio")
	}
	if flags.Changed("seed") {
		cfg.Run.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("max-steps") {
		cfg.Run.MaxSteps, _ = flags.GetInt("max-steps")
	}
	if flags.Changed("render-every") {
		cfg.Run.RenderEvery, _ = flags.GetInt("render-every")
	}
	if flags.Changed("data-dir") {
		cfg.Storage.Dir, _ = flags.GetString("data-dir")
	}
	if noStore, _ := flags.GetBool("no-store"); noStore {
		cfg.Storage.Enabled = false
	}
}

func printRunSummary(w io.Writer, r runOutput) {
	status := "reached the step limit"
	switch {
	case r.Cancelled:
		status = "interrupted"
	case r.Converged:
		status = "converged"
	case r.Stalled:
		status = "stalled (no empty cell left)"
	}

	if r.RunID != "" {
		fmt.Fprintf(w, "Run %s %s\n", r.RunID, status)
	} else {
		fmt.Fprintf(w, "Run %s\n", status)
	}
	fmt.Fprintf(w, "  Grid:        %dx%d, ratio %.2f\n", r.Params.Height, r.Params.Width, r.Params.SatisfactionRatio)
	fmt.Fprintf(w, "  Seed:        %d\n", r.Seed)
	fmt.Fprintf(w, "  Population:  %d A, %d B, %d empty\n", r.Initial.TypeA, r.Initial.TypeB, r.Initial.Empty)
	fmt.Fprintf(w, "  Steps:       %d\n", r.Steps)
	fmt.Fprintf(w, "  Unsatisfied: %d\n", r.FinalUnsatisfied)
	fmt.Fprintf(w, "  Similarity:  %.3f\n", r.FinalSimilarity)
	fmt.Fprintf(w, "  Duration:    %dms\n", r.DurationMs)
}
