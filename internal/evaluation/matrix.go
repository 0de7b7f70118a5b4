package evaluation

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ricesearch/review-topics/internal/labels"
	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// IndicatorMatrix is a binary item-by-label matrix. Row i is Universe.Items[i],
// column j is Universe.Labels[j]; a cell is 1 when the item carries the label.
type IndicatorMatrix struct {
	Universe Universe
	data     *mat.Dense
}

// Dims returns the number of items and labels.
func (m *IndicatorMatrix) Dims() (int, int) {
	return m.data.Dims()
}

// Has reports whether cell (i, j) is set.
func (m *IndicatorMatrix) Has(i, j int) bool {
	return m.data.At(i, j) != 0
}

// Row returns a copy of row i.
func (m *IndicatorMatrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.data)
}

// Dense exposes the underlying matrix. Callers must not modify it.
func (m *IndicatorMatrix) Dense() mat.Matrix {
	return m.data
}

// Encode builds the truth and prediction indicator matrices over u. Items
// absent from a source become all-zero rows.
func Encode(u Universe, truth, pred labels.Collection) (*IndicatorMatrix, *IndicatorMatrix, error) {
	if len(u.Items) == 0 {
		return nil, nil, errors.EmptyInputError("no review ids in either source")
	}
	if len(u.Labels) == 0 {
		return nil, nil, errors.EmptyInputError("no labels in either source")
	}
	return encode(u, truth), encode(u, pred), nil
}

func encode(u Universe, c labels.Collection) *IndicatorMatrix {
	d := mat.NewDense(len(u.Items), len(u.Labels), nil)
	for i, id := range u.Items {
		set := c.Get(id)
		if set.Len() == 0 {
			continue
		}
		for j, l := range u.Labels {
			if set.Has(l) {
				d.Set(i, j, 1)
			}
		}
	}
	return &IndicatorMatrix{Universe: u, data: d}
}

// Decode reads the set cells of m back into a collection. Every item of the
// universe is present, possibly with an empty set.
func Decode(m *IndicatorMatrix) labels.Collection {
	rows, cols := m.Dims()
	out := make(labels.Collection, rows)
	for i := 0; i < rows; i++ {
		set := labels.LabelSet{}
		for j := 0; j < cols; j++ {
			if m.Has(i, j) {
				set.Add(m.Universe.Labels[j])
			}
		}
		out[m.Universe.Items[i]] = set
	}
	return out
}

// checkShapes verifies that truth and pred were encoded over the same universe.
func checkShapes(truth, pred *IndicatorMatrix) error {
	if truth == nil || pred == nil {
		return errors.EmptyInputError("missing indicator matrix")
	}
	tr, tc := truth.Dims()
	pr, pc := pred.Dims()
	if tr != pr || tc != pc {
		return errors.ShapeMismatchError(fmt.Sprintf("truth is %dx%d, predictions are %dx%d", tr, tc, pr, pc))
	}
	if tr == 0 || tc == 0 {
		return errors.EmptyInputError("empty indicator matrix")
	}
	for i := range truth.Universe.Items {
		if truth.Universe.Items[i] != pred.Universe.Items[i] {
			return errors.ShapeMismatchError(fmt.Sprintf("row %d is review %d in truth but %d in predictions",
				i, truth.Universe.Items[i], pred.Universe.Items[i]))
		}
	}
	for j := range truth.Universe.Labels {
		if truth.Universe.Labels[j] != pred.Universe.Labels[j] {
			return errors.ShapeMismatchError(fmt.Sprintf("column %d is %q in truth but %q in predictions",
				j, truth.Universe.Labels[j], pred.Universe.Labels[j]))
		}
	}
	return nil
}
