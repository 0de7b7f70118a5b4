package classify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ricesearch/review-topics/internal/bus"
	"github.com/ricesearch/review-topics/internal/labels"
	"github.com/ricesearch/review-topics/internal/pkg/errors"
	"github.com/ricesearch/review-topics/internal/pkg/hash"
	"github.com/ricesearch/review-topics/internal/pkg/logger"
	"github.com/ricesearch/review-topics/internal/pkg/security"
	"github.com/ricesearch/review-topics/internal/reviews"
)

// MetricsRecorder receives classifier measurements.
// This avoids import cycles with the metrics package.
type MetricsRecorder interface {
	RecordLLMRequest(model string, latency time.Duration, err error)
	RecordCacheResult(hit bool)
}

// Config holds the settings and optional collaborators of a Classifier.
type Config struct {
	// Model is the model name recorded in results, events and cache keys.
	Model  string
	Prompt *Prompt
	Topics []Topic // defaults to DefaultTopics

	Cache     AnswerCache // defaults to NoopCache
	RateLimit float64     // requests/sec, 0 = unlimited

	Log      *logger.Logger
	Metrics  MetricsRecorder
	Progress func(done, total int)
}

// Classifier assigns topics to reviews one at a time.
type Classifier struct {
	chat     ChatModel
	bus      bus.Bus
	model    string
	prompt   *Prompt
	topics   []Topic
	cache    AnswerCache
	limiter  *rate.Limiter
	log      *logger.Logger
	metrics  MetricsRecorder
	progress func(done, total int)
	now      func() time.Time
}

// New creates a classifier. eventBus may be nil.
func New(chat ChatModel, eventBus bus.Bus, cfg Config) (*Classifier, error) {
	if chat == nil {
		return nil, errors.ValidationError("chat model is required")
	}
	if cfg.Model == "" {
		return nil, errors.ValidationError("model name is required")
	}
	if cfg.Prompt == nil {
		return nil, errors.ValidationError("prompt is required")
	}

	topics := cfg.Topics
	if len(topics) == 0 {
		topics = DefaultTopics
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NoopCache{}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}

	return &Classifier{
		chat:     chat,
		bus:      eventBus,
		model:    cfg.Model,
		prompt:   cfg.Prompt,
		topics:   topics,
		cache:    cache,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
		metrics:  cfg.Metrics,
		progress: cfg.Progress,
		now:      time.Now,
	}, nil
}

// Result is the outcome of one classification run.
type Result struct {
	RunID       string
	Model       string
	Predictions labels.Collection
	Failed      []int // reviews whose request failed; their prediction is empty
	CacheHits   int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ClassifiedEvent is the payload published on bus.TopicReviewClassified.
type ClassifiedEvent struct {
	RunID    string   `json:"run_id"`
	Model    string   `json:"model"`
	ReviewID int      `json:"review_id"`
	Topics   []string `json:"topics"`
	Cached   bool     `json:"cached"`
	Failed   bool     `json:"failed"`
}

// CompletedEvent is the payload published on bus.TopicClassifyCompleted.
type CompletedEvent struct {
	RunID      string `json:"run_id"`
	Model      string `json:"model"`
	Reviews    int    `json:"reviews"`
	Failed     int    `json:"failed"`
	CacheHits  int    `json:"cache_hits"`
	DurationMS int64  `json:"duration_ms"`

	// TopicCounts is the number of reviews labelled with each topic.
	TopicCounts map[string]int `json:"topic_counts"`
}

// Run classifies the reviews in order. A failed request leaves the review
// with no topics and records it in Result.Failed. Cancelling ctx aborts the run.
func (c *Classifier) Run(ctx context.Context, items []reviews.Review) (*Result, error) {
	result := &Result{
		RunID:       uuid.NewString(),
		Model:       c.model,
		Predictions: make(labels.Collection, len(items)),
		StartedAt:   c.now(),
	}
	log := c.log.WithRun(result.RunID).WithModel(c.model)
	log.Info("Classification started", "reviews", len(items), "topics", len(c.topics), "prompt_version", c.prompt.Version)

	for i, r := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		topics, cached, err := c.classify(ctx, log, r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).Warn("Classification failed", "review_id", r.ID)
			result.Failed = append(result.Failed, r.ID)
		}
		if cached {
			result.CacheHits++
		}

		set := labels.NewLabelSet()
		names := make([]string, len(topics))
		for j, t := range topics {
			set.Add(string(t))
			names[j] = string(t)
		}
		result.Predictions[r.ID] = set

		c.publish(ctx, log, bus.TopicReviewClassified, result.RunID, ClassifiedEvent{
			RunID:    result.RunID,
			Model:    c.model,
			ReviewID: r.ID,
			Topics:   names,
			Cached:   cached,
			Failed:   err != nil,
		})

		if c.progress != nil {
			c.progress(i+1, len(items))
		}
	}

	result.FinishedAt = c.now()
	duration := result.FinishedAt.Sub(result.StartedAt)
	log.Info("Classification completed",
		"reviews", len(items),
		"failed", len(result.Failed),
		"cache_hits", result.CacheHits,
		"duration", duration.String(),
	)

	c.publish(ctx, log, bus.TopicClassifyCompleted, result.RunID, CompletedEvent{
		RunID:       result.RunID,
		Model:       c.model,
		Reviews:     len(items),
		Failed:      len(result.Failed),
		CacheHits:   result.CacheHits,
		DurationMS:  duration.Milliseconds(),
		TopicCounts: result.Predictions.Counts(),
	})

	return result, nil
}

// Classify returns the topics of a single review text.
func (c *Classifier) Classify(ctx context.Context, text string) ([]Topic, error) {
	topics, _, err := c.classify(ctx, c.log.WithModel(c.model), reviews.Review{Text: text})
	return topics, err
}

func (c *Classifier) classify(ctx context.Context, log *logger.Logger, r reviews.Review) ([]Topic, bool, error) {
	prompt := c.prompt.Build(r.Text, c.topics)
	key := hash.AnswerKey(c.model, c.prompt.System, prompt)

	answer, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("Answer cache read failed", "review_id", r.ID)
		hit = false
	}
	if c.metrics != nil {
		c.metrics.RecordCacheResult(hit)
	}

	if !hit {
		if err := c.limiter.Wait(ctx); err != nil {
			return []Topic{}, false, err
		}

		start := c.now()
		answer, err = c.chat.Chat(ctx, c.prompt.System, prompt)
		if c.metrics != nil {
			c.metrics.RecordLLMRequest(c.model, c.now().Sub(start), err)
		}
		if err != nil {
			return []Topic{}, false, err
		}

		if err := c.cache.Set(ctx, key, answer); err != nil {
			log.WithError(err).Warn("Answer cache write failed", "review_id", r.ID)
		}
	}

	topics := ParseAnswer(answer, c.topics)
	log.Debug("Review classified", "review_id", r.ID, "cached", hit, "answer", security.SanitizeForLog(answer), "topics", len(topics))
	if len(topics) == 0 {
		log.Info("No topics found", "review_id", r.ID)
	}
	return topics, hit, nil
}

func (c *Classifier) publish(ctx context.Context, log *logger.Logger, topic, runID string, payload any) {
	if c.bus == nil {
		return
	}
	event := bus.NewEvent(topic, "classifier", payload)
	event.CorrelationID = runID
	if err := c.bus.Publish(ctx, topic, event); err != nil {
		log.Warn("Failed to publish event", "topic", topic, "error", err.Error())
	}
}
