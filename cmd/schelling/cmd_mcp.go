package main

import (
	"fmt"

	"github.com/AlexandreRouma/devoir1-info0952/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the simulation as MCP tools over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  schelling_create   Build a grid and open a session
  schelling_step     Advance a session by one or more steps
  schelling_cell     Inspect one cell
  schelling_grid     Render a session's grid with its statistics
  schelling_destroy  Release a session
  schelling_run      Run a whole simulation and record it
  schelling_history  List recorded runs or show one step by step

Logs go to stderr. When storage is enabled, runs are recorded in
schelling.db and every tool call is appended to audit.jsonl in the data
directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			maxSessions, _ := cmd.Flags().GetInt("max-sessions")
			maxCells, _ := cmd.Flags().GetInt("max-cells")

			dataDir := ""
			if cfg.Storage.Enabled {
				dataDir = cfg.Storage.Dir
			}

			logger := newLogger(cfg)
			server, err := mcp.NewServer(&mcp.Config{
				Name:        "schelling",
				Version:     version,
				DataDir:     dataDir,
				MaxSessions: maxSessions,
				MaxCells:    maxCells,
				Logger:      logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			logger.Info("mcp server starting", "version", version, "data_dir", dataDir)
			if err := server.Run(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Int("max-sessions", mcp.DefaultMaxSessions, "Maximum number of live grid sessions")
	cmd.Flags().Int("max-cells", mcp.DefaultMaxCells, "Largest grid a tool may build, in cells")

	return cmd
}
