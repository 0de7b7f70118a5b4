package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ricesearch/review-topics/internal/labels"
)

// ReviewMetrics lists every review of u with its true and predicted topics
// and per-review scores, in item order. texts may be nil.
func ReviewMetrics(u Universe, truth, pred labels.Collection, texts map[int]string) []ReviewMetric {
	out := make([]ReviewMetric, 0, len(u.Items))
	for _, id := range u.Items {
		t, p := truth.Get(id), pred.Get(id)
		out = append(out, ReviewMetric{
			ReviewID:  id,
			Text:      texts[id],
			True:      t.Sorted(),
			Predicted: p.Sorted(),
			Correct:   t.IntersectionLen(p),
			Total:     t.Len(),
			Accuracy:  CoverageRatio(t, p),
			Jaccard:   Jaccard(t, p),
		})
	}
	return out
}

var reviewCSVHeader = []string{
	"review_id",
	"review_text",
	"true_topics",
	"predicted_topics",
	"correctly_classified_topics",
	"total_topics",
	"accuracy_per_review",
	"jaccard_score",
}

// WriteReviewsCSV writes review metrics as CSV with a header row. Topic
// lists are joined with ";".
func WriteReviewsCSV(w io.Writer, reviews []ReviewMetric) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reviewCSVHeader); err != nil {
		return err
	}
	for _, r := range reviews {
		record := []string{
			strconv.Itoa(r.ReviewID),
			r.Text,
			strings.Join(r.True, ";"),
			strings.Join(r.Predicted, ";"),
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.Total),
			strconv.FormatFloat(r.Accuracy, 'f', -1, 64),
			strconv.FormatFloat(r.Jaccard, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing review %d: %w", r.ReviewID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReviewsJSON writes review metrics as an indented JSON array.
func WriteReviewsJSON(w io.Writer, reviews []ReviewMetric) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reviews)
}
