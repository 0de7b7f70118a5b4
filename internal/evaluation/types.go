// Package evaluation compares predicted review topics against human
// annotations and computes multi-label classification metrics.
package evaluation

import (
	"encoding/json"
	"time"

	"github.com/ricesearch/review-topics/internal/labels"
)

// Universe is the shared row and column order of an evaluation run.
type Universe struct {
	Items  []int    `json:"items"`  // ascending review ids
	Labels []string `json:"labels"` // lexicographic label names
}

// LabelMetrics holds precision, recall, F1 and support for one label or average.
type LabelMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// RowKind distinguishes the three kinds of report rows.
type RowKind string

const (
	RowLabel     RowKind = "label"
	RowAverage   RowKind = "average"
	RowAggregate RowKind = "aggregate"
)

// Aggregate row names.
const (
	RowMicroAvg        = "micro avg"
	RowMacroAvg        = "macro avg"
	RowWeightedAvg     = "weighted avg"
	RowSamplesAvg      = "samples avg"
	RowOverallAccuracy = "Overall Accuracy"
	RowHammingLoss     = "Hamming Loss"
	RowJaccardScore    = "Jaccard Score"
	RowAvgCorrect      = "Avg Correct per Review"
	RowMicroF1         = "Micro F1"
	RowMacroF1         = "Macro F1"
	RowMicroPrecision  = "Micro Precision"
	RowMacroPrecision  = "Macro Precision"
	RowMicroRecall     = "Micro Recall"
	RowMacroRecall     = "Macro Recall"
)

const placeholder = "-"

// Row is one line of a metrics report. Label and average rows use Metrics;
// aggregate rows carry a single Value.
type Row struct {
	Name    string
	Kind    RowKind
	Metrics LabelMetrics
	Value   float64
}

// MarshalJSON renders aggregate rows with their value in the precision
// column and "-" in the others.
func (r Row) MarshalJSON() ([]byte, error) {
	if r.Kind == RowAggregate {
		return json.Marshal(struct {
			Name      string  `json:"name"`
			Kind      RowKind `json:"kind"`
			Precision float64 `json:"precision"`
			Recall    string  `json:"recall"`
			F1        string  `json:"f1-score"`
			Support   string  `json:"support"`
		}{r.Name, r.Kind, r.Value, placeholder, placeholder, placeholder})
	}
	return json.Marshal(struct {
		Name string  `json:"name"`
		Kind RowKind `json:"kind"`
		LabelMetrics
	}{r.Name, r.Kind, r.Metrics})
}

// Report is the outcome of one metrics computation. Rows keep report order:
// labels, averages, then aggregates.
type Report struct {
	RunID     string    `json:"run_id"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Universe  Universe  `json:"universe"`
	Rows      []Row     `json:"rows"`
}

// Row returns the row with the given name.
func (r *Report) Row(name string) (Row, bool) {
	for _, row := range r.Rows {
		if row.Name == name {
			return row, true
		}
	}
	return Row{}, false
}

// Value returns the scalar of an aggregate row, or 0 when absent.
func (r *Report) Value(name string) float64 {
	row, ok := r.Row(name)
	if !ok {
		return 0
	}
	return row.Value
}

// ReviewMetric is the per-review inspection view.
type ReviewMetric struct {
	ReviewID  int      `json:"review_id"`
	Text      string   `json:"review_text"`
	True      []string `json:"true_topics"`
	Predicted []string `json:"predicted_topics"`
	Correct   int      `json:"correctly_classified_topics"`
	Total     int      `json:"total_topics"`
	Accuracy  float64  `json:"accuracy_per_review"`
	Jaccard   float64  `json:"jaccard_score"`
}

// Result bundles everything one evaluation run produces.
type Result struct {
	Report   *Report          `json:"report"`
	Reviews  []ReviewMetric   `json:"reviews"`
	Warnings []labels.Warning `json:"warnings,omitempty"`
}
