package evaluation

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ricesearch/review-topics/internal/labels"
	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

const epsilon = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// scenario is two reviews: {bugs, story} vs {bugs} and {price} vs {price, story}.
func scenario() (labels.Collection, labels.Collection) {
	truth := labels.Collection{
		1: labels.NewLabelSet("bugs", "story"),
		2: labels.NewLabelSet("price"),
	}
	pred := labels.Collection{
		1: labels.NewLabelSet("bugs"),
		2: labels.NewLabelSet("price", "story"),
	}
	return truth, pred
}

func TestCoverageRatio(t *testing.T) {
	tests := []struct {
		name  string
		truth labels.LabelSet
		pred  labels.LabelSet
		want  float64
	}{
		{"half covered", labels.NewLabelSet("bugs", "story"), labels.NewLabelSet("bugs"), 0.5},
		{"fully covered with extra", labels.NewLabelSet("price"), labels.NewLabelSet("price", "story"), 1},
		{"both empty", labels.LabelSet{}, labels.LabelSet{}, 1},
		{"no truth, something predicted", labels.LabelSet{}, labels.NewLabelSet("bugs"), 0},
		{"nothing predicted", labels.NewLabelSet("bugs"), labels.LabelSet{}, 0},
		{"nil sets", nil, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoverageRatio(tt.truth, tt.pred); !approx(got, tt.want) {
				t.Errorf("CoverageRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name  string
		truth labels.LabelSet
		pred  labels.LabelSet
		want  float64
	}{
		{"one shared of three", labels.NewLabelSet("a", "b"), labels.NewLabelSet("b", "c"), 1.0 / 3},
		{"identical", labels.NewLabelSet("a"), labels.NewLabelSet("a"), 1},
		{"disjoint", labels.NewLabelSet("a"), labels.NewLabelSet("b"), 0},
		{"both empty", labels.LabelSet{}, labels.LabelSet{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Jaccard(tt.truth, tt.pred); !approx(got, tt.want) {
				t.Errorf("Jaccard() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeMetrics_SampleScoresMatchSetScores(t *testing.T) {
	truth := labels.Collection{
		1: labels.NewLabelSet("bugs", "story"),
		2: labels.LabelSet{},
		3: labels.LabelSet{},
		4: labels.NewLabelSet("price"),
	}
	pred := labels.Collection{
		1: labels.NewLabelSet("bugs", "price"),
		2: labels.LabelSet{},
		3: labels.NewLabelSet("story"),
		4: labels.LabelSet{},
	}

	u := Reconcile(truth, pred)
	tm, pm, err := Encode(u, truth, pred)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	report, err := ComputeMetrics(tm, pm)
	if err != nil {
		t.Fatalf("ComputeMetrics() error = %v", err)
	}

	var sumJaccard, sumCoverage float64
	for _, id := range u.Items {
		sumJaccard += Jaccard(truth[id], pred[id])
		sumCoverage += CoverageRatio(truth[id], pred[id])
	}
	n := float64(len(u.Items))
	if got, want := report.Value(RowJaccardScore), sumJaccard/n; !approx(got, want) {
		t.Errorf("jaccard score = %v, want %v", got, want)
	}
	if got, want := report.Value(RowAvgCorrect), sumCoverage/n; !approx(got, want) {
		t.Errorf("avg correct = %v, want %v", got, want)
	}
}

func TestComputeMetrics_Scenario(t *testing.T) {
	truth, pred := scenario()
	u := Reconcile(truth, pred)
	tm, pm, err := Encode(u, truth, pred)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	report, err := ComputeMetrics(tm, pm)
	if err != nil {
		t.Fatalf("ComputeMetrics() error = %v", err)
	}

	twoThirds := 2.0 / 3
	want := []Row{
		{Name: "bugs", Kind: RowLabel, Metrics: LabelMetrics{1, 1, 1, 1}},
		{Name: "price", Kind: RowLabel, Metrics: LabelMetrics{1, 1, 1, 1}},
		{Name: "story", Kind: RowLabel, Metrics: LabelMetrics{0, 0, 0, 1}},
		{Name: RowMicroAvg, Kind: RowAverage, Metrics: LabelMetrics{twoThirds, twoThirds, twoThirds, 3}},
		{Name: RowMacroAvg, Kind: RowAverage, Metrics: LabelMetrics{twoThirds, twoThirds, twoThirds, 3}},
		{Name: RowWeightedAvg, Kind: RowAverage, Metrics: LabelMetrics{twoThirds, twoThirds, twoThirds, 3}},
		{Name: RowSamplesAvg, Kind: RowAverage, Metrics: LabelMetrics{0.75, 0.75, twoThirds, 3}},
		{Name: RowOverallAccuracy, Kind: RowAggregate, Value: 4.0 / 6},
		{Name: RowHammingLoss, Kind: RowAggregate, Value: 2.0 / 6},
		{Name: RowJaccardScore, Kind: RowAggregate, Value: 0.5},
		{Name: RowAvgCorrect, Kind: RowAggregate, Value: 0.75},
		{Name: RowMicroF1, Kind: RowAggregate, Value: twoThirds},
		{Name: RowMacroF1, Kind: RowAggregate, Value: twoThirds},
		{Name: RowMicroPrecision, Kind: RowAggregate, Value: twoThirds},
		{Name: RowMacroPrecision, Kind: RowAggregate, Value: twoThirds},
		{Name: RowMicroRecall, Kind: RowAggregate, Value: twoThirds},
		{Name: RowMacroRecall, Kind: RowAggregate, Value: twoThirds},
	}
	if diff := cmp.Diff(want, report.Rows, cmpopts.EquateApprox(0, epsilon)); diff != "" {
		t.Errorf("report rows mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeMetrics_ZeroDivision(t *testing.T) {
	// "gameplay" is only predicted, "sound" only annotated, review 3 has nothing.
	truth := labels.Collection{1: labels.NewLabelSet("sound"), 3: labels.LabelSet{}}
	pred := labels.Collection{2: labels.NewLabelSet("gameplay")}

	u := Reconcile(truth, pred)
	tm, pm, err := Encode(u, truth, pred)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	report, err := ComputeMetrics(tm, pm)
	if err != nil {
		t.Fatalf("ComputeMetrics() error = %v", err)
	}

	for _, name := range []string{"gameplay", "sound", RowMicroAvg, RowMacroAvg, RowWeightedAvg} {
		row, ok := report.Row(name)
		if !ok {
			t.Fatalf("row %q missing", name)
		}
		m := row.Metrics
		for _, v := range []float64{m.Precision, m.Recall, m.F1} {
			if math.IsNaN(v) || v != 0 {
				t.Errorf("row %q: got %+v, want all zero", name, m)
			}
		}
	}

	// Review 3 is the only one without truth and without predictions.
	if got := report.Value(RowAvgCorrect); !approx(got, 1.0/3) {
		t.Errorf("Avg Correct per Review = %v, want 1/3", got)
	}
	if got := report.Value(RowJaccardScore); !approx(got, 1.0/3) {
		t.Errorf("Jaccard Score = %v, want 1/3", got)
	}
	if got := report.Value(RowHammingLoss); !approx(got, 2.0/6) {
		t.Errorf("Hamming Loss = %v, want 2/6", got)
	}
}

func TestComputeMetrics_PerfectPrediction(t *testing.T) {
	truth := labels.Collection{
		1: labels.NewLabelSet("bugs", "story"),
		2: labels.NewLabelSet("price"),
	}
	u := Reconcile(truth, truth)
	tm, pm, err := Encode(u, truth, truth)
	if err != nil {
		t.Fatal(err)
	}
	report, err := ComputeMetrics(tm, pm)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{RowOverallAccuracy, RowJaccardScore, RowAvgCorrect, RowMicroF1, RowMacroF1} {
		if got := report.Value(name); !approx(got, 1) {
			t.Errorf("%s = %v, want 1", name, got)
		}
	}
	if got := report.Value(RowHammingLoss); got != 0 {
		t.Errorf("Hamming Loss = %v, want 0", got)
	}
}

func TestComputeMetrics_ShapeMismatch(t *testing.T) {
	truth, pred := scenario()
	u := Reconcile(truth, pred)
	tm, _, err := Encode(u, truth, pred)
	if err != nil {
		t.Fatal(err)
	}

	other := Universe{Items: u.Items, Labels: []string{"bugs", "price"}}
	_, pm, err := Encode(other, truth, pred)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ComputeMetrics(tm, pm); errors.CodeOf(err) != errors.CodeShapeMismatch {
		t.Errorf("expected SHAPE_MISMATCH, got %v", err)
	}

	shifted := Universe{Items: []int{1, 3}, Labels: u.Labels}
	_, pm, err = Encode(shifted, truth, pred)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ComputeMetrics(tm, pm); errors.CodeOf(err) != errors.CodeShapeMismatch {
		t.Errorf("expected SHAPE_MISMATCH for different items, got %v", err)
	}

	if _, err := ComputeMetrics(nil, pm); errors.CodeOf(err) != errors.CodeEmptyInput {
		t.Errorf("expected EMPTY_INPUT for nil matrix, got %v", err)
	}
}

func TestComputeMetrics_Deterministic(t *testing.T) {
	truth, pred := scenario()

	var first []Row
	for i := 0; i < 5; i++ {
		u := Reconcile(truth, pred)
		tm, pm, err := Encode(u, truth, pred)
		if err != nil {
			t.Fatal(err)
		}
		report, err := ComputeMetrics(tm, pm)
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = report.Rows
			continue
		}
		if diff := cmp.Diff(first, report.Rows); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}
