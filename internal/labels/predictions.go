package labels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// ReadPredictions decodes a prediction export: a JSON object mapping a
// review id string to the list of predicted labels.
func ReadPredictions(r io.Reader) (Collection, error) {
	var raw map[string][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.CodeInputFormat, "prediction export is not an object of label lists", err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Collection, len(raw))
	for _, key := range keys {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, errors.ParseError(fmt.Sprintf("prediction key %q is not an integer", key), err).
				WithDetail("key", key)
		}
		if id < 0 {
			return nil, errors.ParseError(fmt.Sprintf("prediction key %q is negative", key), nil).
				WithDetail("key", key)
		}
		if _, dup := out[id]; dup {
			return nil, errors.ParseError(fmt.Sprintf("prediction key %q duplicates review %d", key, id), nil).
				WithDetail("key", key)
		}

		set := make(LabelSet, len(raw[key]))
		for _, l := range raw[key] {
			if err := ValidateLabel(l); err != nil {
				return nil, errors.Wrap(errors.CodeInputFormat, fmt.Sprintf("prediction %q", key), err).
					WithDetail("key", key)
			}
			set.Add(l)
		}
		out[id] = set
	}

	return out, nil
}

// LoadPredictionsFile reads a prediction export from disk.
func LoadPredictionsFile(path string) (Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening predictions: %w", err)
	}
	defer f.Close()

	pred, err := ReadPredictions(f)
	if err != nil {
		return nil, fmt.Errorf("reading predictions %s: %w", path, err)
	}
	return pred, nil
}

// WritePredictions encodes c in the prediction export format, with review
// ids in ascending numeric order and labels sorted.
func WritePredictions(w io.Writer, c Collection) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range c.IDs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(strconv.Itoa(id))
		val, err := json.Marshal(c.Get(id).Sorted())
		if err != nil {
			return fmt.Errorf("encoding review %d: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString("}\n")

	_, err := w.Write(buf.Bytes())
	return err
}

// SavePredictionsFile writes c to path in the prediction export format.
func SavePredictionsFile(path string, c Collection) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating predictions file: %w", err)
	}
	if err := WritePredictions(f, c); err != nil {
		f.Close()
		return fmt.Errorf("writing predictions: %w", err)
	}
	return f.Close()
}
