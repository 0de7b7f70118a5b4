package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/review-topics/internal/bus"
	"github.com/ricesearch/review-topics/internal/classify"
	"github.com/ricesearch/review-topics/internal/config"
	"github.com/ricesearch/review-topics/internal/labels"
	"github.com/ricesearch/review-topics/internal/pkg/logger"
	"github.com/ricesearch/review-topics/internal/reviews"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Label annotated reviews with topics using a language model",
		Long: `Send annotated reviews to an OpenAI-compatible chat endpoint (Ollama by
default) and save the predicted topics as
annotations-v<version>-<timestamp>-n<N|all>-<model>.json in the output directory.

Use --text to classify a single review and print its topics instead.`,
		RunE: runClassify,
	}

	cmd.Flags().StringP("model", "m", "", "model name (overrides config)")
	cmd.Flags().IntP("prompt-version", "p", 0, "prompt version (overrides config)")
	cmd.Flags().IntP("number", "n", 0, "number of reviews to classify (0 = all)")
	cmd.Flags().Bool("sample", false, "pick reviews at random instead of the first n")
	cmd.Flags().Uint64("seed", 0, "random seed for --sample (default: time based)")
	cmd.Flags().String("source", "csv", "review source (csv, annotations)")
	cmd.Flags().Bool("all-reviews", false, "classify every review in the CSV, not only annotated ones")
	cmd.Flags().String("topics", "", "comma separated topic list (default: built-in topics)")
	cmd.Flags().String("text", "", "classify this text only and print its topics")
	cmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	cmd.Flags().Bool("evaluate", false, "evaluate the predictions once classification finished")

	return cmd
}

// classifyOptions are the classify flags that do not map onto the config.
type classifyOptions struct {
	number     int
	sample     bool
	seed       uint64
	source     string
	allReviews bool
}

func runClassify(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	cfg, log, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	if cmd.Flags().Changed("model") {
		cfg.LLM.Model, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("prompt-version") {
		cfg.Prompts.Version, _ = cmd.Flags().GetInt("prompt-version")
	}
	if cmd.Flags().Changed("output") {
		cfg.Data.OutputDir, _ = cmd.Flags().GetString("output")
	}

	opts := classifyOptions{}
	opts.number, _ = cmd.Flags().GetInt("number")
	opts.sample, _ = cmd.Flags().GetBool("sample")
	opts.seed, _ = cmd.Flags().GetUint64("seed")
	opts.source, _ = cmd.Flags().GetString("source")
	opts.allReviews, _ = cmd.Flags().GetBool("all-reviews")
	if !cmd.Flags().Changed("seed") {
		opts.seed = uint64(time.Now().UnixNano())
	}

	topics := classify.DefaultTopics
	if list, _ := cmd.Flags().GetString("topics"); list != "" {
		if topics, err = classify.ParseTopics(list); err != nil {
			return err
		}
	}

	prompt, err := classify.LoadPrompt(cfg.Prompts.Dir, cfg.Prompts.Version)
	if err != nil {
		return err
	}

	chat, err := classify.NewOpenAIChat(classify.OpenAIConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.Timeout) * time.Second,
		MaxRetries:  2,
	})
	if err != nil {
		return err
	}

	cache, err := classify.NewCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create answer cache: %w", err)
	}
	defer cache.Close()

	eventBus, err := bus.NewBus(cfg.Bus, log)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer eventBus.Close()

	log.Info("Classifier configured", settingsArgs(map[string]string{
		"llm_url":        cfg.LLM.BaseURL,
		"llm_api_key":    cfg.LLM.APIKey,
		"model":          cfg.LLM.Model,
		"prompt_version": strconv.Itoa(cfg.Prompts.Version),
		"cache":          cfg.Cache.Type,
		"redis_url":      cfg.Cache.RedisURL,
		"bus":            cfg.Bus.Type,
	})...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	classifier, err := classify.New(chat, eventBus, classify.Config{
		Model:     cfg.LLM.Model,
		Prompt:    prompt,
		Topics:    topics,
		Cache:     cache,
		RateLimit: cfg.LLM.RateLimit,
		Log:       log,
		Progress:  progressLogger(log),
	})
	if err != nil {
		return err
	}

	if text, _ := cmd.Flags().GetString("text"); text != "" {
		found, err := classifier.Classify(ctx, text)
		if err != nil {
			return err
		}
		names := make([]string, len(found))
		for i, t := range found {
			names[i] = string(t)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, ","))
		return nil
	}

	ann, err := labels.LoadAnnotationsFile(cfg.Data.Annotations)
	if err != nil {
		return fmt.Errorf("failed to load annotations: %w", err)
	}
	items, err := loadReviews(cfg, ann, opts)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no reviews to classify")
	}

	result, err := classifier.Run(ctx, items)
	if err != nil {
		return fmt.Errorf("classification aborted: %w", err)
	}

	if err := os.MkdirAll(cfg.Data.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(cfg.Data.OutputDir, classify.OutputFilename(prompt.Version, result.StartedAt, opts.number, result.Model))
	if err := labels.SavePredictionsFile(path, result.Predictions); err != nil {
		return err
	}
	log.Info("Predictions saved", "path", path, "reviews", len(result.Predictions), "failed", len(result.Failed))
	fmt.Fprintln(cmd.OutOrStdout(), path)

	if evaluate, _ := cmd.Flags().GetBool("evaluate"); !evaluate {
		return nil
	}

	evalResult, err := evaluateFiles(ctx, eventBus, log, cfg.Data.Annotations, path, result.Model)
	if err != nil {
		return err
	}
	reportPath, err := saveEvaluation(cfg.Data.OutputDir, evalResult, "")
	if err != nil {
		return err
	}
	log.Info("Evaluation saved", "path", reportPath)

	if format == "json" {
		return evalResult.Report.WriteJSON(cmd.OutOrStdout())
	}
	return evalResult.Report.WriteText(cmd.OutOrStdout())
}

// loadReviews picks the reviews to classify: annotated reviews from the CSV
// dataset, or the texts of a full annotation export, cut down to opts.number.
func loadReviews(cfg *config.Config, ann *labels.Annotations, opts classifyOptions) ([]reviews.Review, error) {
	var all []reviews.Review
	switch opts.source {
	case "csv":
		loaded, err := reviews.LoadFile(cfg.Data.Reviews, cfg.Data.IDColumn, cfg.Data.TextColumn)
		if err != nil {
			return nil, fmt.Errorf("failed to load reviews: %w", err)
		}
		all = loaded
		if !opts.allReviews {
			all = reviews.FilterIDs(all, ann.Labels.IDs())
		}
	case "annotations":
		if len(ann.Texts) == 0 {
			return nil, fmt.Errorf("annotation export %s carries no review texts", cfg.Data.Annotations)
		}
		all = reviews.FromTexts(ann.Texts)
	default:
		return nil, fmt.Errorf("unknown review source %q (want csv or annotations)", opts.source)
	}

	return selectReviews(all, opts), nil
}

func selectReviews(all []reviews.Review, opts classifyOptions) []reviews.Review {
	if opts.sample {
		return reviews.Sample(all, opts.number, rand.New(rand.NewPCG(opts.seed, opts.seed)))
	}
	return reviews.Head(all, opts.number)
}

// progressLogger logs progress every tenth of the run.
func progressLogger(log *logger.Logger) func(done, total int) {
	return func(done, total int) {
		step := max(total/10, 1)
		if done%step == 0 || done == total {
			log.Info("Classification progress", "done", done, "total", total)
		}
	}
}
