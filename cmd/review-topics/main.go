package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ricesearch/review-topics/internal/config"
	apperrors "github.com/ricesearch/review-topics/internal/pkg/errors"
	"github.com/ricesearch/review-topics/internal/pkg/logger"
	"github.com/ricesearch/review-topics/internal/pkg/security"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "review-topics",
		Short: "Review topics - LLM topic labelling and evaluation for game reviews",
		Long: `Review topics labels game reviews with topics using a local language
model and evaluates the predictions against human annotations.

Run 'review-topics classify' to label annotated reviews.
Run 'review-topics evaluate -f <predictions>' to score a prediction file.
Run 'review-topics serve' to start the evaluation API.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		evaluateCmd(),
		classifyCmd(),
		serveCmd(),
		eventsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode returns 2 for errors caused by bad input files or settings
// and 1 for everything else.
func exitCode(err error) int {
	if apperrors.IsInputFormat(err) || apperrors.IsParse(err) || apperrors.IsValidation(err) {
		return 2
	}
	return 1
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "review-topics %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
		},
	}
}

// setup loads the configuration named by --config and builds the logger.
// The returned closer releases the log file, if any.
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, io.Closer, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log, closer, err := logger.NewFile(cfg.Log.File, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return cfg, log, closer, nil
}

// settingsArgs turns startup settings into sorted key/value log arguments
// with credentials masked. Empty settings are left out.
func settingsArgs(settings map[string]string) []any {
	masked := security.MaskSensitiveMap(settings)
	keys := make([]string, 0, len(masked))
	for k, v := range masked {
		if v != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, masked[k])
	}
	return args
}

// outputFormat returns the --format flag, rejecting unknown values.
func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "text", "json":
		return format, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", format)
}
