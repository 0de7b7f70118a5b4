package evaluation

import (
	"slices"

	"github.com/ricesearch/review-topics/internal/labels"
)

// Reconcile builds the item and label universes of a run: the sorted union
// of review ids and label names found in either source.
func Reconcile(truth, pred labels.Collection) Universe {
	items := append(truth.IDs(), pred.IDs()...)
	slices.Sort(items)

	names := append(truth.Labels(), pred.Labels()...)
	slices.Sort(names)

	return Universe{Items: slices.Compact(items), Labels: slices.Compact(names)}
}
