// Package labels turns annotation and prediction exports into per-review
// label sets.
package labels

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// LabelSet is the set of labels one source assigned to one review.
type LabelSet map[string]struct{}

// NewLabelSet creates a set holding the given labels.
func NewLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Add inserts a label.
func (s LabelSet) Add(label string) {
	s[label] = struct{}{}
}

// Has reports whether label is in the set. A nil set is empty.
func (s LabelSet) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// Len returns the number of labels.
func (s LabelSet) Len() int {
	return len(s)
}

// Sorted returns the labels in lexicographic order.
func (s LabelSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// IntersectionLen returns |s ∩ other|.
func (s LabelSet) IntersectionLen(other LabelSet) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for l := range small {
		if large.Has(l) {
			n++
		}
	}
	return n
}

// UnionLen returns |s ∪ other|.
func (s LabelSet) UnionLen(other LabelSet) int {
	return len(s) + len(other) - s.IntersectionLen(other)
}

// Equal reports whether both sets hold the same labels.
func (s LabelSet) Equal(other LabelSet) bool {
	return len(s) == len(other) && s.IntersectionLen(other) == len(s)
}

// Collection maps a review identifier to the labels one source assigned to it.
type Collection map[int]LabelSet

// Get returns the labels for id, or an empty set when the source has none.
func (c Collection) Get(id int) LabelSet {
	if s, ok := c[id]; ok && s != nil {
		return s
	}
	return LabelSet{}
}

// IDs returns the review identifiers in ascending order.
func (c Collection) IDs() []int {
	ids := make([]int, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Labels returns every label used by any review, sorted.
func (c Collection) Labels() []string {
	all := LabelSet{}
	for _, s := range c {
		for l := range s {
			all.Add(l)
		}
	}
	return all.Sorted()
}

// Counts returns how many reviews carry each label.
func (c Collection) Counts() map[string]int {
	counts := make(map[string]int)
	for _, s := range c {
		for l := range s {
			counts[l]++
		}
	}
	return counts
}

// ValidateLabel checks that a label is a non-empty, whitespace-free string.
func ValidateLabel(label string) error {
	if label == "" {
		return errors.InputFormatError("empty label")
	}
	if strings.IndexFunc(label, unicode.IsSpace) >= 0 {
		return errors.InputFormatError(fmt.Sprintf("label %q contains whitespace", label))
	}
	return nil
}
