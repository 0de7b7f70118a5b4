// Package reviews reads the review datasets that get classified.
package reviews

import (
	"compress/bzip2"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// Review is one user review.
type Review struct {
	ID   int    `json:"review_id"`
	Text string `json:"review"`
}

// ReadCSV reads reviews from a CSV stream with a header row. idColumn and
// textColumn name the columns holding the review id and text.
func ReadCSV(r io.Reader, idColumn, textColumn string) ([]Review, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.InputFormatError("review CSV is empty")
		}
		return nil, errors.Wrap(errors.CodeInputFormat, "reading CSV header", err)
	}

	idIdx, textIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case idColumn:
			idIdx = i
		case textColumn:
			textIdx = i
		}
	}
	if idIdx < 0 {
		return nil, errors.InputFormatError(fmt.Sprintf("review CSV has no %q column", idColumn)).WithDetail("field", idColumn)
	}
	if textIdx < 0 {
		return nil, errors.InputFormatError(fmt.Sprintf("review CSV has no %q column", textColumn)).WithDetail("field", textColumn)
	}

	var out []Review
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.CodeInputFormat, "reading CSV", err)
		}
		if idIdx >= len(record) || textIdx >= len(record) {
			return nil, errors.InputFormatError(fmt.Sprintf("line %d: too few columns", line)).
				WithDetail("line", strconv.Itoa(line))
		}

		id, err := parseID(record[idIdx])
		if err != nil {
			return nil, errors.Wrap(errors.CodeInputFormat, fmt.Sprintf("line %d: invalid review id %q", line, record[idIdx]), err).
				WithDetail("line", strconv.Itoa(line)).
				WithDetail("field", idColumn)
		}
		out = append(out, Review{ID: id, Text: record[textIdx]})
	}
	return out, nil
}

// parseID accepts plain integers and integral floats such as "42.0".
func parseID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		if id < 0 {
			return 0, fmt.Errorf("negative id")
		}
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(int64(f)) {
		return 0, fmt.Errorf("not a non-negative integer")
	}
	return int(f), nil
}

// Open opens a dataset file, decompressing it when the name ends in ".bz2".
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reviews: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".bz2") {
		return f, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{bzip2.NewReader(f), f}, nil
}

// LoadFile reads a possibly compressed review CSV from disk.
func LoadFile(path, idColumn, textColumn string) ([]Review, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	out, err := ReadCSV(rc, idColumn, textColumn)
	if err != nil {
		return nil, fmt.Errorf("reading reviews %s: %w", path, err)
	}
	return out, nil
}

// Sample returns n reviews drawn without replacement. n <= 0 or n >= len(reviews)
// returns a copy of all reviews in input order.
func Sample(reviews []Review, n int, rng *rand.Rand) []Review {
	out := make([]Review, len(reviews))
	copy(out, reviews)
	if n <= 0 || n >= len(out) {
		return out
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:n]
}

// Head returns the first n reviews, or all of them when n <= 0.
func Head(reviews []Review, n int) []Review {
	if n <= 0 || n >= len(reviews) {
		return reviews
	}
	return reviews[:n]
}

// FilterIDs keeps the reviews whose id is in ids, in input order.
func FilterIDs(reviews []Review, ids []int) []Review {
	keep := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	var out []Review
	for _, r := range reviews {
		if _, ok := keep[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// FromTexts builds reviews from an id to text map, ordered by id.
func FromTexts(texts map[int]string) []Review {
	out := make([]Review, 0, len(texts))
	for id, text := range texts {
		out = append(out, Review{ID: id, Text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
