package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/vlasim/internal/config"
	"github.com/san-kum/vlasim/internal/logging"
)

var (
	configFile string
	dataDir    string
	preset     string
	logLevel   string

	simRun  string
	prompt  string
	offline bool
	live    bool
	runName string
)

// main registers the vlasim commands and exits 1 when a command fails.
// An interrupted rollout is a clean exit.
func main() {
	rootCmd := &cobra.Command{
		Use:           "vlasim",
		Short:         "simulated DROID rollouts against a VLA policy server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "vlasim.yaml", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "run data directory (overrides data.runs)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "config preset applied after loading")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a policy rollout, asking on the terminal whether to reset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollout(cmd.Context(), modeInteractive)
		},
	}
	record := &cobra.Command{
		Use:   "record",
		Short: "run a bounded auto-resetting rollout and write camera videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollout(cmd.Context(), modeRecord)
		},
	}
	for _, c := range []*cobra.Command{runCmd, record} {
		c.Flags().StringVar(&simRun, "sim_run", "", "scene preset, see `vlasim scenes`")
		c.Flags().StringVar(&prompt, "prompt", "", "task prompt")
		c.Flags().BoolVar(&offline, "offline", false, "hold position instead of querying the policy server")
		c.Flags().BoolVar(&live, "live", false, "draw joint positions on stderr")
		c.Flags().StringVar(&runName, "name", "", "run id prefix (defaults to the scene)")
		_ = c.MarkFlagRequired("sim_run")
	}

	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "list scene presets",
		Args:  cobra.NoArgs,
		RunE:  listScenes,
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list saved rollouts",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot joint trajectories of a saved rollout",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a saved rollout to JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list config presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	rootCmd.AddCommand(runCmd, record, scenesCmd, runsCmd, plotCmd, exportCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file, applies the preset and the flag
// overrides, and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(configFile)
	if err != nil {
		return nil, err
	}
	if preset != "" && !cfg.Apply(preset) {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}
	if dataDir != "" {
		cfg.Data.Runs = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if offline {
		cfg.Policy.Offline = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	return logging.New("vlasim", cfg.Log)
}
