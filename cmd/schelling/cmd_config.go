package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/AlexandreRouma/devoir1-info0952/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage schelling configuration",
		Long: `View and modify schelling configuration settings.

Configuration is stored in ~/.schelling/config.yaml unless --config names
another file. SCHELLING_* environment variables override the file.

Examples:
  schelling config list                        # Show all settings
  schelling config get grid.satisfaction_ratio # Get a specific setting
  schelling config set grid.width 80           # Set a setting
  schelling config set storage.enabled false`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to format config: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			value, found := getConfigValue(cfg, key)
			if !found {
				if jsonOut {
					json.NewEncoder(out).Encode(map[string]interface{}{
						"error": "key not found",
						"key":   key,
					})
				} else {
					fmt.Fprintf(out, "Unknown configuration key: %s\n", key)
				}
				return nil
			}

			if jsonOut {
				json.NewEncoder(out).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			} else {
				fmt.Fprintf(out, "%s = %v\n", key, value)
			}

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]
			value := args[1]

			path, err := configPath(cmd)
			if err != nil {
				return err
			}

			// Only the file's own values are written back, not env overrides.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				cfg, err = config.LoadFromFile(path)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else if !errors.Is(statErr, fs.ErrNotExist) {
				return fmt.Errorf("failed to stat config: %w", statErr)
			}

			out := cmd.OutOrStdout()
			if err := setConfigValue(cfg, key, value); err != nil {
				if jsonOut {
					json.NewEncoder(out).Encode(map[string]interface{}{
						"error": err.Error(),
						"key":   key,
					})
				} else {
					fmt.Fprintf(out, "Error: %v\n", err)
				}
				return nil
			}

			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				json.NewEncoder(out).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			} else {
				fmt.Fprintf(out, "Set %s = %s\n", key, value)
			}

			return nil
		},
	}
}

// configPath returns --config, or ~/.schelling/config.yaml.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return "", fmt.Errorf("failed to locate config: %w", err)
	}
	return path, nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.SchellingConfig, key string) (interface{}, bool) {
	switch key {
	case "grid.height":
		return cfg.Grid.Height, true
	case "grid.width":
		return cfg.Grid.Width, true
	case "grid.prob_type_a":
		return cfg.Grid.ProbTypeA, true
	case "grid.prob_type_b":
		return cfg.Grid.ProbTypeB, true
	case "grid.satisfaction_ratio":
		return cfg.Grid.SatisfactionRatio, true
	case "run.seed":
		return cfg.Run.Seed, true
	case "run.max_steps":
		return cfg.Run.MaxSteps, true
	case "run.render_every":
		return cfg.Run.RenderEvery, true
	case "storage.enabled":
		return cfg.Storage.Enabled, true
	case "storage.dir":
		return cfg.Storage.Dir, true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key. The
// resulting configuration must still validate.
func setConfigValue(cfg *config.SchellingConfig, key, value string) error {
	parseInt := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		*dst = n
		return nil
	}
	parseFloat := func(dst *float64) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %s", key, value)
		}
		*dst = f
		return nil
	}

	next := *cfg
	var err error
	switch key {
	case "grid.height":
		err = parseInt(&next.Grid.Height)
	case "grid.width":
		err = parseInt(&next.Grid.Width)
	case "grid.prob_type_a":
		err = parseFloat(&next.Grid.ProbTypeA)
	case "grid.prob_type_b":
		err = parseFloat(&next.Grid.ProbTypeB)
	case "grid.satisfaction_ratio":
		err = parseFloat(&next.Grid.SatisfactionRatio)
	case "run.seed":
		next.Run.Seed, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			err = fmt.Errorf("invalid seed: %s", value)
		}
	case "run.max_steps":
		err = parseInt(&next.Run.MaxSteps)
	case "run.render_every":
		err = parseInt(&next.Run.RenderEvery)
	case "storage.enabled":
		next.Storage.Enabled = value == "true" || value == "1"
	case "storage.dir":
		next.Storage.Dir = value
	case "logging.level":
		next.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return err
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = next
	return nil
}
