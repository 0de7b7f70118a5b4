package evaluation

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ricesearch/review-topics/internal/labels"
)

func scenarioReport(t *testing.T) *Report {
	t.Helper()
	truth, pred := scenario()
	tm, pm, err := Encode(Reconcile(truth, pred), truth, pred)
	if err != nil {
		t.Fatal(err)
	}
	report, err := ComputeMetrics(tm, pm)
	if err != nil {
		t.Fatal(err)
	}
	return report
}

func TestReport_JSONPlaceholders(t *testing.T) {
	report := scenarioReport(t)
	report.Model = "llama3.2"

	var buf bytes.Buffer
	if err := report.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var decoded struct {
		Model string           `json:"model"`
		Rows  []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Model != "llama3.2" {
		t.Errorf("model = %q", decoded.Model)
	}

	byName := make(map[string]map[string]any)
	for _, row := range decoded.Rows {
		byName[row["name"].(string)] = row
	}

	hamming := byName[RowHammingLoss]
	for _, col := range []string{"recall", "f1-score", "support"} {
		if hamming[col] != "-" {
			t.Errorf("Hamming Loss %s = %v, want \"-\"", col, hamming[col])
		}
	}
	if v, ok := hamming["precision"].(float64); !ok || !approx(v, 2.0/6) {
		t.Errorf("Hamming Loss value = %v, want 2/6", hamming["precision"])
	}

	story := byName["story"]
	if story["support"] != float64(1) || story["kind"] != string(RowLabel) {
		t.Errorf("unexpected story row: %v", story)
	}
}

func TestReport_WriteText(t *testing.T) {
	report := scenarioReport(t)

	var buf bytes.Buffer
	if err := report.WriteText(&buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"precision", "recall", "f1-score", "support", "samples avg", "Overall Accuracy", "0.6667"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}

func TestReviewMetrics(t *testing.T) {
	truth, pred := scenario()
	u := Reconcile(truth, pred)
	texts := map[int]string{1: "Crashes constantly, nice plot"}

	got := ReviewMetrics(u, truth, pred, texts)
	want := []ReviewMetric{
		{
			ReviewID:  1,
			Text:      "Crashes constantly, nice plot",
			True:      []string{"bugs", "story"},
			Predicted: []string{"bugs"},
			Correct:   1,
			Total:     2,
			Accuracy:  0.5,
			Jaccard:   0.5,
		},
		{
			ReviewID:  2,
			True:      []string{"price"},
			Predicted: []string{"price", "story"},
			Correct:   1,
			Total:     1,
			Accuracy:  1,
			Jaccard:   0.5,
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, epsilon)); diff != "" {
		t.Errorf("ReviewMetrics() mismatch (-want +got):\n%s", diff)
	}
}

func TestReviewMetrics_MissingFromOneSource(t *testing.T) {
	truth := labels.Collection{1: labels.LabelSet{}}
	pred := labels.Collection{2: labels.NewLabelSet("bugs")}
	u := Reconcile(truth, pred)

	got := ReviewMetrics(u, truth, pred, nil)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Accuracy != 1 || got[0].Jaccard != 1 {
		t.Errorf("review 1: %+v, want accuracy and jaccard 1", got[0])
	}
	if got[1].Accuracy != 0 || got[1].Total != 0 {
		t.Errorf("review 2: %+v, want accuracy 0", got[1])
	}
}

func TestWriteReviewsCSV(t *testing.T) {
	truth, pred := scenario()
	reviews := ReviewMetrics(Reconcile(truth, pred), truth, pred, map[int]string{2: "Too expensive, \"meh\""})

	var buf bytes.Buffer
	if err := WriteReviewsCSV(&buf, reviews); err != nil {
		t.Fatalf("WriteReviewsCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2", len(records))
	}
	if diff := cmp.Diff(reviewCSVHeader, records[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	want := []string{"2", "Too expensive, \"meh\"", "price", "price;story", "1", "1", "1", "0.5"}
	if diff := cmp.Diff(want, records[2]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteReviewsJSON(t *testing.T) {
	truth, pred := scenario()
	reviews := ReviewMetrics(Reconcile(truth, pred), truth, pred, nil)

	var buf bytes.Buffer
	if err := WriteReviewsJSON(&buf, reviews); err != nil {
		t.Fatalf("WriteReviewsJSON() error = %v", err)
	}

	var back []ReviewMetric
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if diff := cmp.Diff(reviews, back); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}
