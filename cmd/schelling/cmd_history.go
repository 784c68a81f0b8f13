package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AlexandreRouma/devoir1-info0952/internal/pathutil"
	"github.com/AlexandreRouma/devoir1-info0952/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `List recorded runs, newest first. With a run ID, show that run and the
metrics of each of its steps.

Examples:
  schelling history                 # Last 20 runs
  schelling history --limit 0       # All runs
  schelling history <run-id>        # One run, step by step
  schelling history <run-id> --export run.json
  schelling history <run-id> --delete

Exports may be written to the current directory or to <data-dir>/exports.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			del, _ := cmd.Flags().GetBool("delete")
			exportPath, _ := cmd.Flags().GetString("export")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
				cfg.Storage.Dir = dir
			}

			runStore, err := store.NewSQLiteRunStore(cfg.Storage.Dir)
			if err != nil {
				return fmt.Errorf("failed to open run store: %w", err)
			}
			defer runStore.Close()

			ctx := context.Background()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if del || exportPath != "" {
					return fmt.Errorf("--delete and --export require a run ID")
				}
				runs, err := runStore.ListRuns(ctx, limit)
				if err != nil {
					return fmt.Errorf("failed to list runs: %w", err)
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]interface{}{
						"runs":  runs,
						"count": len(runs),
					})
				}
				printRuns(out, runs)
				return nil
			}

			runID := args[0]
			if del {
				if err := runStore.DeleteRun(ctx, runID); err != nil {
					return fmt.Errorf("failed to delete run %s: %w", runID, err)
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]string{
						"status": "deleted",
						"run_id": runID,
					})
				}
				fmt.Fprintf(out, "Deleted run %s\n", runID)
				return nil
			}

			run, err := runStore.GetRun(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}
			if run == nil {
				return fmt.Errorf("%w: %s", store.ErrRunNotFound, runID)
			}
			steps, err := runStore.ListSteps(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to list steps: %w", err)
			}

			export := runExport{Run: run, Steps: steps}
			if exportPath != "" {
				if err := writeExport(exportPath, cfg.Storage.Dir, export); err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]string{
						"status": "exported",
						"run_id": runID,
						"path":   exportPath,
					})
				}
				fmt.Fprintf(out, "Exported run %s (%d steps) to %s\n", runID, len(steps), exportPath)
				return nil
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(export)
			}
			printRun(out, run, steps)
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().Bool("delete", false, "Delete the given run and its steps")
	cmd.Flags().String("export", "", "Write the given run and its steps to a JSON file")
	cmd.Flags().String("data-dir", "", "Directory holding schelling.db (overrides storage.dir)")

	return cmd
}

// runExport is a run with its steps, as shown by --json and written by --export.
type runExport struct {
	Run   *store.Run         `json:"run"`
	Steps []store.StepRecord `json:"steps"`
}

// writeExport writes e as indented JSON to path, which must lie in the
// working directory or under <dataDir>/exports.
func writeExport(path, dataDir string, e runExport) error {
	allowed, err := pathutil.AllowedExportDirs(dataDir)
	if err != nil {
		return err
	}
	if err := pathutil.ValidatePath(path, allowed); err != nil {
		return fmt.Errorf("invalid export path: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", pathutil.RedactPath(path), err)
	}
	return nil
}

func printRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-19s  %9s  %5s  %6s  %s\n", "ID", "CREATED", "GRID", "RATIO", "STEPS", "STATUS")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-19s  %9s  %5.2f  %6d  %s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%dx%d", r.Params.Height, r.Params.Width),
			r.Params.SatisfactionRatio,
			r.Steps,
			runStatus(r),
		)
	}
}

func printRun(w io.Writer, r *store.Run, steps []store.StepRecord) {
	fmt.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "  Created:     %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Grid:        %dx%d, prob A %.2f, prob B %.2f, ratio %.2f\n",
		r.Params.Height, r.Params.Width, r.Params.ProbTypeA, r.Params.ProbTypeB, r.Params.SatisfactionRatio)
	fmt.Fprintf(w, "  Seed:        %d\n", r.Seed)
	fmt.Fprintf(w, "  Population:  %d A, %d B, %d empty\n", r.Initial.TypeA, r.Initial.TypeB, r.Initial.Empty)
	fmt.Fprintf(w, "  Status:      %s\n", runStatus(*r))
	if r.Finished() {
		fmt.Fprintf(w, "  Unsatisfied: %d after %d steps\n", r.FinalUnsatisfied, r.Steps)
	}

	if len(steps) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%6s  %11s  %6s  %10s\n", "STEP", "UNSATISFIED", "EMPTY", "SIMILARITY")
	for _, s := range steps {
		fmt.Fprintf(w, "%6d  %11d  %6d  %10.3f\n", s.Step, s.Unsatisfied, s.Empty, s.Similarity)
	}
}

func runStatus(r store.Run) string {
	switch {
	case !r.Finished():
		return "running"
	case r.Converged:
		return "converged"
	default:
		return "unconverged"
	}
}
