package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ricesearch/review-topics/internal/bus"
	"github.com/ricesearch/review-topics/internal/classify"
	"github.com/ricesearch/review-topics/internal/evaluation"
	"github.com/ricesearch/review-topics/internal/labels"
	"github.com/ricesearch/review-topics/internal/pkg/logger"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a prediction file against the annotations",
		Long: `Compare the topics of a prediction file with the human annotations and
print the multi-label classification report.

The report is also saved as eval_<model>_<timestamp>.json in the output
directory. The model is inferred from the prediction file name unless
--model is given.`,
		RunE: runEvaluate,
	}

	cmd.Flags().StringP("predictions", "f", "", "prediction file (required)")
	cmd.Flags().StringP("annotations", "a", "", "annotation export (overrides config)")
	cmd.Flags().StringP("model", "m", "", "model name (default: inferred from the prediction file)")
	cmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	cmd.Flags().String("reviews", "", "also save per-review metrics (csv, json)")
	cmd.Flags().Bool("no-save", false, "print the report without saving it")
	_ = cmd.MarkFlagRequired("predictions")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	reviewsFormat, _ := cmd.Flags().GetString("reviews")
	if reviewsFormat != "" && reviewsFormat != "csv" && reviewsFormat != "json" {
		return fmt.Errorf("unknown review metrics format %q (want csv or json)", reviewsFormat)
	}

	cfg, log, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	predPath, _ := cmd.Flags().GetString("predictions")
	if cmd.Flags().Changed("annotations") {
		cfg.Data.Annotations, _ = cmd.Flags().GetString("annotations")
	}
	if cmd.Flags().Changed("output") {
		cfg.Data.OutputDir, _ = cmd.Flags().GetString("output")
	}
	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = classify.ModelFromFilename(predPath)
	}
	noSave, _ := cmd.Flags().GetBool("no-save")

	eventBus, err := bus.NewBus(cfg.Bus, log)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer eventBus.Close()

	result, err := evaluateFiles(cmd.Context(), eventBus, log, cfg.Data.Annotations, predPath, model)
	if err != nil {
		return err
	}

	if !noSave {
		path, err := saveEvaluation(cfg.Data.OutputDir, result, reviewsFormat)
		if err != nil {
			return err
		}
		log.Info("Evaluation saved", "path", path)
	}

	if format == "json" {
		return result.Report.WriteJSON(cmd.OutOrStdout())
	}
	return result.Report.WriteText(cmd.OutOrStdout())
}

// evaluateFiles loads both exports and runs one evaluation.
func evaluateFiles(ctx context.Context, eventBus bus.Bus, log *logger.Logger, annPath, predPath, model string) (*evaluation.Result, error) {
	ann, err := labels.LoadAnnotationsFile(annPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load annotations: %w", err)
	}
	pred, err := labels.LoadPredictionsFile(predPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}

	evaluator := evaluation.NewEvaluator(eventBus, evaluation.Config{Log: log})
	return evaluator.Evaluate(ctx, evaluation.Input{
		Annotations: ann,
		Predictions: pred,
		Model:       model,
	})
}

// saveEvaluation writes the report, and optionally the per-review metrics
// next to it, returning the report path.
func saveEvaluation(dir string, result *evaluation.Result, reviewsFormat string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	report := result.Report
	path := filepath.Join(dir, classify.EvalFilename(report.Model, report.CreatedAt))
	if err := writeFile(path, report.WriteJSON); err != nil {
		return "", err
	}

	switch reviewsFormat {
	case "csv":
		err := writeFile(reviewsPath(path, "csv"), func(w io.Writer) error {
			return evaluation.WriteReviewsCSV(w, result.Reviews)
		})
		if err != nil {
			return "", err
		}
	case "json":
		err := writeFile(reviewsPath(path, "json"), func(w io.Writer) error {
			return evaluation.WriteReviewsJSON(w, result.Reviews)
		})
		if err != nil {
			return "", err
		}
	}
	return path, nil
}

func reviewsPath(reportPath, ext string) string {
	return strings.TrimSuffix(reportPath, ".json") + "_reviews." + ext
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
