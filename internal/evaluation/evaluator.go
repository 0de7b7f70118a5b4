package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ricesearch/review-topics/internal/bus"
	"github.com/ricesearch/review-topics/internal/labels"
	"github.com/ricesearch/review-topics/internal/pkg/logger"
)

// MetricsRecorder receives one call per evaluation run.
// This avoids import cycles with the metrics package.
type MetricsRecorder interface {
	RecordEvaluation(model string, duration time.Duration, err error)
}

// Config holds the optional collaborators of an Evaluator.
type Config struct {
	Log     *logger.Logger
	Metrics MetricsRecorder
}

// Evaluator runs one evaluation per call. It holds no state between runs.
type Evaluator struct {
	bus     bus.Bus
	log     *logger.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// NewEvaluator creates an evaluator. eventBus may be nil.
func NewEvaluator(eventBus bus.Bus, cfg Config) *Evaluator {
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Evaluator{
		bus:     eventBus,
		log:     log,
		metrics: cfg.Metrics,
		now:     time.Now,
	}
}

// Input is one pair of sources to compare.
type Input struct {
	Annotations *labels.Annotations
	Predictions labels.Collection
	Model       string
}

// CompletedEvent is the payload published on bus.TopicEvaluationCompleted.
type CompletedEvent struct {
	RunID           string  `json:"run_id"`
	Model           string  `json:"model"`
	Items           int     `json:"items"`
	Labels          int     `json:"labels"`
	OverallAccuracy float64 `json:"overall_accuracy"`
	MicroF1         float64 `json:"micro_f1"`
	MacroF1         float64 `json:"macro_f1"`
	AvgCorrect      float64 `json:"avg_correct_per_review"`
}

// Evaluate reconciles both sources, encodes them and computes the report
// and the per-review view.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (*Result, error) {
	start := e.now()
	result, err := e.evaluate(in)
	if e.metrics != nil {
		e.metrics.RecordEvaluation(in.Model, e.now().Sub(start), err)
	}
	if err != nil {
		return nil, err
	}

	log := e.log.WithRun(result.Report.RunID).WithModel(in.Model)
	for _, w := range result.Warnings {
		log.Warn("Annotation warning", "kind", w.Kind, "record", w.Record, "review_id", w.ReviewID, "message", w.Message)
	}

	report := result.Report
	log.Info("Evaluation completed",
		"items", len(report.Universe.Items),
		"labels", len(report.Universe.Labels),
		"overall_accuracy", report.Value(RowOverallAccuracy),
		"micro_f1", report.Value(RowMicroF1),
	)

	if e.bus != nil {
		event := bus.NewEvent(bus.TopicEvaluationCompleted, "evaluator", CompletedEvent{
			RunID:           report.RunID,
			Model:           report.Model,
			Items:           len(report.Universe.Items),
			Labels:          len(report.Universe.Labels),
			OverallAccuracy: report.Value(RowOverallAccuracy),
			MicroF1:         report.Value(RowMicroF1),
			MacroF1:         report.Value(RowMacroF1),
			AvgCorrect:      report.Value(RowAvgCorrect),
		})
		event.CorrelationID = report.RunID
		if err := e.bus.Publish(ctx, bus.TopicEvaluationCompleted, event); err != nil {
			log.Warn("Failed to publish evaluation event", "error", err.Error())
		}
	}

	return result, nil
}

func (e *Evaluator) evaluate(in Input) (*Result, error) {
	ann := in.Annotations
	if ann == nil {
		ann = &labels.Annotations{Labels: labels.Collection{}}
	}

	u := Reconcile(ann.Labels, in.Predictions)
	truth, pred, err := Encode(u, ann.Labels, in.Predictions)
	if err != nil {
		return nil, err
	}

	report, err := ComputeMetrics(truth, pred)
	if err != nil {
		return nil, err
	}
	report.RunID = uuid.NewString()
	report.Model = in.Model
	report.CreatedAt = e.now().UTC()

	return &Result{
		Report:   report,
		Reviews:  ReviewMetrics(u, ann.Labels, in.Predictions, ann.Texts),
		Warnings: ann.Warnings,
	}, nil
}
