package evaluation

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ricesearch/review-topics/internal/labels"
)

// CoverageRatio is the fraction of true labels that were also predicted.
// A review without true labels scores 1 when nothing was predicted and 0 otherwise.
func CoverageRatio(truth, pred labels.LabelSet) float64 {
	return coverage(float64(truth.IntersectionLen(pred)), float64(truth.Len()), float64(pred.Len()))
}

// Jaccard is |truth ∩ pred| / |truth ∪ pred|, and 1 when both sets are empty.
func Jaccard(truth, pred labels.LabelSet) float64 {
	return jaccard(float64(truth.IntersectionLen(pred)), float64(truth.UnionLen(pred)))
}

// coverage is CoverageRatio over counts: both true and predicted, true, predicted.
func coverage(both, nTrue, nPred float64) float64 {
	switch {
	case nTrue > 0:
		return both / nTrue
	case nPred == 0:
		return 1
	default:
		return 0
	}
}

// jaccard is Jaccard over counts.
func jaccard(both, union float64) float64 {
	if union == 0 {
		return 1
	}
	return both / union
}

// safeDiv returns num/den, or 0 when den is zero.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// scores turns raw counts into precision, recall and F1.
func scores(tp, predicted, actual float64) (float64, float64, float64) {
	return safeDiv(tp, predicted), safeDiv(tp, actual), safeDiv(2*tp, predicted+actual)
}

// ComputeMetrics compares two matrices encoded over the same universe and
// returns the full report: one row per label, the four average rows, then
// the aggregate scores.
func ComputeMetrics(truth, pred *IndicatorMatrix) (*Report, error) {
	if err := checkShapes(truth, pred); err != nil {
		return nil, err
	}

	rows, cols := truth.Dims()
	var inter mat.Dense
	inter.MulElem(truth.data, pred.data)

	// Per label.
	perLabel := make([]LabelMetrics, cols)
	precisions := make([]float64, cols)
	recalls := make([]float64, cols)
	f1s := make([]float64, cols)
	supports := make([]float64, cols)
	var tpSum, predSum, trueSum float64
	for j := 0; j < cols; j++ {
		tp := floats.Sum(mat.Col(nil, j, &inter))
		predicted := floats.Sum(mat.Col(nil, j, pred.data))
		actual := floats.Sum(mat.Col(nil, j, truth.data))

		p, r, f := scores(tp, predicted, actual)
		perLabel[j] = LabelMetrics{Precision: p, Recall: r, F1: f, Support: int(actual)}
		precisions[j], recalls[j], f1s[j], supports[j] = p, r, f, actual

		tpSum += tp
		predSum += predicted
		trueSum += actual
	}
	totalSupport := int(trueSum)

	microP, microR, microF := scores(tpSum, predSum, trueSum)
	micro := LabelMetrics{Precision: microP, Recall: microR, F1: microF, Support: totalSupport}
	macro := LabelMetrics{
		Precision: stat.Mean(precisions, nil),
		Recall:    stat.Mean(recalls, nil),
		F1:        stat.Mean(f1s, nil),
		Support:   totalSupport,
	}
	weighted := LabelMetrics{Support: totalSupport}
	if trueSum > 0 {
		weighted.Precision = stat.Mean(precisions, supports)
		weighted.Recall = stat.Mean(recalls, supports)
		weighted.F1 = stat.Mean(f1s, supports)
	}

	// Per review.
	samplePrecision := make([]float64, rows)
	sampleRecall := make([]float64, rows)
	sampleF1 := make([]float64, rows)
	jaccards := make([]float64, rows)
	coverages := make([]float64, rows)
	mismatched := 0
	for i := 0; i < rows; i++ {
		t := mat.Row(nil, i, truth.data)
		p := mat.Row(nil, i, pred.data)
		both := floats.Sum(mat.Row(nil, i, &inter))
		tSum, pSum := floats.Sum(t), floats.Sum(p)

		samplePrecision[i], sampleRecall[i], sampleF1[i] = scores(both, pSum, tSum)

		jaccards[i] = jaccard(both, tSum+pSum-both)
		coverages[i] = coverage(both, tSum, pSum)

		for j := range t {
			if t[j] != p[j] {
				mismatched++
			}
		}
	}
	samples := LabelMetrics{
		Precision: stat.Mean(samplePrecision, nil),
		Recall:    stat.Mean(sampleRecall, nil),
		F1:        stat.Mean(sampleF1, nil),
		Support:   totalSupport,
	}

	cells := float64(rows * cols)
	report := &Report{
		Universe: truth.Universe,
		Rows:     make([]Row, 0, cols+14),
	}
	for j, l := range truth.Universe.Labels {
		report.Rows = append(report.Rows, Row{Name: l, Kind: RowLabel, Metrics: perLabel[j]})
	}
	report.Rows = append(report.Rows,
		Row{Name: RowMicroAvg, Kind: RowAverage, Metrics: micro},
		Row{Name: RowMacroAvg, Kind: RowAverage, Metrics: macro},
		Row{Name: RowWeightedAvg, Kind: RowAverage, Metrics: weighted},
		Row{Name: RowSamplesAvg, Kind: RowAverage, Metrics: samples},
		aggregate(RowOverallAccuracy, float64(rows*cols-mismatched)/cells),
		aggregate(RowHammingLoss, float64(mismatched)/cells),
		aggregate(RowJaccardScore, stat.Mean(jaccards, nil)),
		aggregate(RowAvgCorrect, stat.Mean(coverages, nil)),
		aggregate(RowMicroF1, micro.F1),
		aggregate(RowMacroF1, macro.F1),
		aggregate(RowMicroPrecision, micro.Precision),
		aggregate(RowMacroPrecision, macro.Precision),
		aggregate(RowMicroRecall, micro.Recall),
		aggregate(RowMacroRecall, macro.Recall),
	)
	return report, nil
}

func aggregate(name string, v float64) Row {
	return Row{Name: name, Kind: RowAggregate, Value: v}
}
