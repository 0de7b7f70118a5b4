package labels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// WarningKind classifies a non-fatal problem found while building label sets.
type WarningKind string

const (
	// WarningMissingLabels means a record had no label choice; it counts as an empty set.
	WarningMissingLabels WarningKind = "missing_labels"
	// WarningDuplicateItem means a review id appeared twice; the later record wins.
	WarningDuplicateItem WarningKind = "duplicate_item"
)

// Warning describes a record that was accepted with a caveat.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Record   int         `json:"record"`
	ReviewID int         `json:"review_id"`
	Message  string      `json:"message"`
}

// Annotations is the ground truth extracted from one annotation export.
type Annotations struct {
	Labels   Collection
	Texts    map[int]string
	Warnings []Warning
}

// minRecord is one entry of a JSON-MIN export.
type minRecord struct {
	ReviewID json.RawMessage `json:"review_id"`
	Tag      json.RawMessage `json:"tag"`
}

// fullRecord is one task of a full JSON export.
type fullRecord struct {
	Data struct {
		ReviewID json.RawMessage `json:"review_id"`
		Review   json.RawMessage `json:"review"`
	} `json:"data"`
	Annotations []struct {
		Result []struct {
			Value struct {
				Choices []string `json:"choices"`
			} `json:"value"`
		} `json:"result"`
	} `json:"annotations"`
}

// choicesTag is the structured tag variant: {"choices": [...]}.
type choicesTag struct {
	Choices *[]string `json:"choices"`
}

// ReadAnnotations decodes an annotation export (a JSON array) and builds label sets from it.
func ReadAnnotations(r io.Reader) (*Annotations, error) {
	var records []json.RawMessage
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(errors.CodeInputFormat, "annotation export is not a JSON array", err)
	}
	return BuildLabelSets(records)
}

// LoadAnnotationsFile reads an annotation export from disk.
func LoadAnnotationsFile(path string) (*Annotations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening annotations: %w", err)
	}
	defer f.Close()

	ann, err := ReadAnnotations(f)
	if err != nil {
		return nil, fmt.Errorf("reading annotations %s: %w", path, err)
	}
	return ann, nil
}

// BuildLabelSets maps every review id in records to its set of labels.
// Both JSON-MIN records and full export tasks are accepted, per record.
// Records without a label choice become empty sets and are reported as warnings.
func BuildLabelSets(records []json.RawMessage) (*Annotations, error) {
	out := &Annotations{
		Labels: make(Collection, len(records)),
		Texts:  make(map[int]string),
	}

	for i, raw := range records {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, errors.Wrap(errors.CodeInputFormat, fmt.Sprintf("record %d is not an object", i), err).
				WithDetail("record", strconv.Itoa(i))
		}

		var (
			id      int
			set     LabelSet
			text    string
			hasText bool
			missing bool
			err     error
		)
		if _, ok := fields["data"]; ok {
			id, set, text, hasText, err = parseFullRecord(raw, i)
			missing = err == nil && set.Len() == 0
		} else {
			id, set, missing, err = parseMinRecord(raw, i)
		}
		if err != nil {
			return nil, err
		}

		if _, dup := out.Labels[id]; dup {
			out.Warnings = append(out.Warnings, Warning{
				Kind:     WarningDuplicateItem,
				Record:   i,
				ReviewID: id,
				Message:  fmt.Sprintf("review %d annotated more than once, keeping record %d", id, i),
			})
		}
		if missing {
			out.Warnings = append(out.Warnings, Warning{
				Kind:     WarningMissingLabels,
				Record:   i,
				ReviewID: id,
				Message:  fmt.Sprintf("no tags found for review %d", id),
			})
		}

		out.Labels[id] = set
		if hasText {
			out.Texts[id] = text
		}
	}

	return out, nil
}

func parseMinRecord(raw json.RawMessage, index int) (int, LabelSet, bool, error) {
	var rec minRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return 0, nil, false, recordError(index, "", "malformed record", err)
	}

	id, err := parseReviewID(rec.ReviewID, index, "review_id")
	if err != nil {
		return 0, nil, false, err
	}

	if isAbsent(rec.Tag) {
		return id, LabelSet{}, true, nil
	}

	labels, err := parseTag(rec.Tag)
	if err != nil {
		return 0, nil, false, recordError(index, "tag", "unsupported tag", err)
	}
	set, err := toLabelSet(labels, index, "tag")
	if err != nil {
		return 0, nil, false, err
	}
	return id, set, set.Len() == 0, nil
}

func parseFullRecord(raw json.RawMessage, index int) (int, LabelSet, string, bool, error) {
	var rec fullRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return 0, nil, "", false, recordError(index, "", "malformed task", err)
	}

	id, err := parseReviewID(rec.Data.ReviewID, index, "data.review_id")
	if err != nil {
		return 0, nil, "", false, err
	}

	var choices []string
	for _, a := range rec.Annotations {
		for _, res := range a.Result {
			choices = append(choices, res.Value.Choices...)
		}
	}
	set, err := toLabelSet(choices, index, "annotations.result.value.choices")
	if err != nil {
		return 0, nil, "", false, err
	}

	var text string
	hasText := false
	if !isAbsent(rec.Data.Review) {
		hasText = json.Unmarshal(rec.Data.Review, &text) == nil
	}
	return id, set, text, hasText, nil
}

// parseTag resolves the two tag variants: a structured choices object,
// falling back to a single label string.
func parseTag(raw json.RawMessage) ([]string, error) {
	var structured choicesTag
	if err := json.Unmarshal(raw, &structured); err == nil && structured.Choices != nil {
		return *structured.Choices, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	return nil, fmt.Errorf("tag must be a choices object or a label string, got %s", truncate(raw))
}

// parseReviewID accepts an integral JSON number or a numeric string.
func parseReviewID(raw json.RawMessage, index int, field string) (int, error) {
	if isAbsent(raw) {
		return 0, recordError(index, field, "missing identifier", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, recordError(index, field, "malformed identifier", err)
	}

	var (
		id  int64
		err error
	)
	switch x := v.(type) {
	case json.Number:
		id, err = x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
				return 0, recordError(index, field, "identifier is not an integer", err)
			}
			id, err = int64(f), nil
		}
	case string:
		id, err = strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, recordError(index, field, "identifier is not an integer", err)
		}
	default:
		return 0, recordError(index, field, fmt.Sprintf("identifier has unsupported type %T", v), nil)
	}

	if id < 0 {
		return 0, recordError(index, field, "identifier is negative", nil)
	}
	return int(id), nil
}

func toLabelSet(labels []string, index int, field string) (LabelSet, error) {
	set := make(LabelSet, len(labels))
	for _, l := range labels {
		if err := ValidateLabel(l); err != nil {
			return nil, recordError(index, field, "invalid label", err)
		}
		set.Add(l)
	}
	return set, nil
}

func recordError(index int, field, message string, err error) *errors.AppError {
	msg := fmt.Sprintf("record %d: %s", index, message)
	if field != "" {
		msg = fmt.Sprintf("record %d: %s: %s", index, field, message)
	}
	appErr := errors.Wrap(errors.CodeInputFormat, msg, err).WithDetail("record", strconv.Itoa(index))
	if field != "" {
		appErr = appErr.WithDetail("field", field)
	}
	return appErr
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func truncate(raw json.RawMessage) string {
	const limit = 64
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}
