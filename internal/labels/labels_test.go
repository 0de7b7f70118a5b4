package labels

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

func rawRecords(t *testing.T, js string) []json.RawMessage {
	t.Helper()
	var records []json.RawMessage
	if err := json.Unmarshal([]byte(js), &records); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return records
}

func sortedCollection(c Collection) map[int][]string {
	out := make(map[int][]string, len(c))
	for id, s := range c {
		out[id] = s.Sorted()
	}
	return out
}

func TestLabelSet_Operations(t *testing.T) {
	a := NewLabelSet("a", "b")
	b := NewLabelSet("b", "c")

	if got := a.IntersectionLen(b); got != 1 {
		t.Errorf("IntersectionLen() = %d, want 1", got)
	}
	if got := a.UnionLen(b); got != 3 {
		t.Errorf("UnionLen() = %d, want 3", got)
	}
	if a.Equal(b) {
		t.Error("Equal() = true for different sets")
	}
	if !a.Equal(NewLabelSet("b", "a")) {
		t.Error("Equal() = false for same labels")
	}
	if diff := cmp.Diff([]string{"a", "b"}, a.Sorted()); diff != "" {
		t.Errorf("Sorted() mismatch (-want +got):\n%s", diff)
	}

	var nilSet LabelSet
	if nilSet.Has("a") || nilSet.Len() != 0 {
		t.Error("nil set should behave as empty")
	}
}

func TestCollection_GetMissingIsEmpty(t *testing.T) {
	c := Collection{1: NewLabelSet("bugs")}
	if got := c.Get(2); got == nil || got.Len() != 0 {
		t.Errorf("Get(missing) = %v, want empty set", got)
	}
	if diff := cmp.Diff([]int{1}, c.IDs()); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		label   string
		wantErr bool
	}{
		{"bugs", false},
		{"hardware_requirements", false},
		{"", true},
		{"online play", true},
		{"tab\tlabel", true},
		{"newline\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			err := ValidateLabel(tt.label)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLabel(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			}
		})
	}
}

func TestBuildLabelSets_MinExport(t *testing.T) {
	records := rawRecords(t, `[
		{"id": 10, "review_id": 1, "tag": {"choices": ["bugs", "story"]}},
		{"id": 11, "review_id": 2, "tag": "price"},
		{"id": 12, "review_id": 3},
		{"id": 13, "review_id": 4, "tag": {"choices": []}}
	]`)

	ann, err := BuildLabelSets(records)
	if err != nil {
		t.Fatalf("BuildLabelSets() error = %v", err)
	}

	want := map[int][]string{
		1: {"bugs", "story"},
		2: {"price"},
		3: {},
		4: {},
	}
	if diff := cmp.Diff(want, sortedCollection(ann.Labels)); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	if len(ann.Warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %+v", len(ann.Warnings), ann.Warnings)
	}
	for i, wantID := range []int{3, 4} {
		w := ann.Warnings[i]
		if w.Kind != WarningMissingLabels || w.ReviewID != wantID || w.Record != i+2 {
			t.Errorf("unexpected warning: %+v", w)
		}
	}
}

func TestBuildLabelSets_FullExport(t *testing.T) {
	records := rawRecords(t, `[
		{
			"id": 1,
			"data": {"review_id": 42, "review": "Crashes every hour, great story though"},
			"annotations": [
				{"result": [{"value": {"choices": ["bugs"]}}, {"value": {"choices": ["story"]}}]},
				{"result": [{"value": {"choices": ["bugs"]}}]}
			]
		},
		{
			"id": 2,
			"data": {"review_id": "43", "review": "meh"},
			"annotations": []
		}
	]`)

	ann, err := BuildLabelSets(records)
	if err != nil {
		t.Fatalf("BuildLabelSets() error = %v", err)
	}

	want := map[int][]string{42: {"bugs", "story"}, 43: {}}
	if diff := cmp.Diff(want, sortedCollection(ann.Labels)); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if ann.Texts[42] != "Crashes every hour, great story though" {
		t.Errorf("Texts[42] = %q", ann.Texts[42])
	}
	if len(ann.Warnings) != 1 || ann.Warnings[0].ReviewID != 43 {
		t.Errorf("expected one missing-labels warning for 43, got %+v", ann.Warnings)
	}
}

func TestBuildLabelSets_DuplicateLaterWins(t *testing.T) {
	records := rawRecords(t, `[
		{"review_id": 5, "tag": "price"},
		{"review_id": 5, "tag": "story"}
	]`)

	ann, err := BuildLabelSets(records)
	if err != nil {
		t.Fatalf("BuildLabelSets() error = %v", err)
	}
	if diff := cmp.Diff([]string{"story"}, ann.Labels.Get(5).Sorted()); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if len(ann.Warnings) != 1 || ann.Warnings[0].Kind != WarningDuplicateItem {
		t.Errorf("expected duplicate warning, got %+v", ann.Warnings)
	}
}

func TestBuildLabelSets_Errors(t *testing.T) {
	tests := []struct {
		name      string
		records   string
		wantField string
	}{
		{"missing identifier", `[{"tag": "price"}]`, "review_id"},
		{"null identifier", `[{"review_id": null, "tag": "price"}]`, "review_id"},
		{"fractional identifier", `[{"review_id": 1.5, "tag": "price"}]`, "review_id"},
		{"negative identifier", `[{"review_id": -1, "tag": "price"}]`, "review_id"},
		{"text identifier", `[{"review_id": "abc", "tag": "price"}]`, "review_id"},
		{"numeric tag", `[{"review_id": 1, "tag": 7}]`, "tag"},
		{"object tag without choices", `[{"review_id": 1, "tag": {"label": "x"}}]`, "tag"},
		{"whitespace label", `[{"review_id": 1, "tag": "online play"}]`, "tag"},
		{"full export without id", `[{"data": {"review": "x"}, "annotations": []}]`, "data.review_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildLabelSets(rawRecords(t, tt.records))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.IsInputFormat(err) {
				t.Fatalf("expected INPUT_FORMAT, got %v", err)
			}
			appErr := err.(*errors.AppError)
			if appErr.Details["field"] != tt.wantField {
				t.Errorf("field = %q, want %q", appErr.Details["field"], tt.wantField)
			}
			if appErr.Details["record"] != "0" {
				t.Errorf("record = %q, want 0", appErr.Details["record"])
			}
		})
	}
}

func TestBuildLabelSets_NotAnObject(t *testing.T) {
	_, err := BuildLabelSets(rawRecords(t, `[1]`))
	if !errors.IsInputFormat(err) {
		t.Fatalf("expected INPUT_FORMAT, got %v", err)
	}
}

func TestBuildLabelSets_Independent(t *testing.T) {
	records := rawRecords(t, `[{"review_id": 1, "tag": "price"}]`)

	first, err := BuildLabelSets(records)
	if err != nil {
		t.Fatal(err)
	}
	first.Labels[1].Add("bugs")

	second, err := BuildLabelSets(records)
	if err != nil {
		t.Fatal(err)
	}
	if second.Labels[1].Has("bugs") {
		t.Error("second call observed mutation of the first result")
	}
}

func TestReadAnnotations_MalformedJSON(t *testing.T) {
	_, err := ReadAnnotations(strings.NewReader(`{"review_id": 1}`))
	if !errors.IsInputFormat(err) {
		t.Fatalf("expected INPUT_FORMAT, got %v", err)
	}
}

func TestReadPredictions(t *testing.T) {
	pred, err := ReadPredictions(strings.NewReader(`{"1": ["bugs"], "2": ["price", "story"], "3": [], "4": null}`))
	if err != nil {
		t.Fatalf("ReadPredictions() error = %v", err)
	}

	want := map[int][]string{
		1: {"bugs"},
		2: {"price", "story"},
		3: {},
		4: {},
	}
	if diff := cmp.Diff(want, sortedCollection(pred)); diff != "" {
		t.Errorf("predictions mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPredictions_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		parse bool
	}{
		{"non-integer key", `{"abc": ["bugs"]}`, true},
		{"negative key", `{"-3": ["bugs"]}`, true},
		{"colliding keys", `{"1": ["bugs"], "01": ["price"]}`, true},
		{"malformed json", `{"1": ["bugs"]`, false},
		{"array instead of object", `[["bugs"]]`, false},
		{"non-string label", `{"1": [3]}`, false},
		{"whitespace label", `{"1": ["online play"]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPredictions(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.parse && !errors.IsParse(err) {
				t.Errorf("expected PARSE_ERROR, got %v", err)
			}
			if !tt.parse && !errors.IsInputFormat(err) {
				t.Errorf("expected INPUT_FORMAT, got %v", err)
			}
		})
	}
}

func TestWritePredictions_RoundTrip(t *testing.T) {
	c := Collection{
		10: NewLabelSet("story", "bugs"),
		2:  NewLabelSet("price"),
		3:  LabelSet{},
	}

	var buf bytes.Buffer
	if err := WritePredictions(&buf, c); err != nil {
		t.Fatalf("WritePredictions() error = %v", err)
	}

	want := `{"2":["price"],"3":[],"10":["bugs","story"]}` + "\n"
	if buf.String() != want {
		t.Errorf("WritePredictions() = %s, want %s", buf.String(), want)
	}

	back, err := ReadPredictions(&buf)
	if err != nil {
		t.Fatalf("ReadPredictions() error = %v", err)
	}
	if diff := cmp.Diff(sortedCollection(c), sortedCollection(back)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	annPath := filepath.Join(dir, "annotations.json")
	predPath := filepath.Join(dir, "predictions.json")

	if err := os.WriteFile(annPath, []byte(`[{"review_id": 1, "tag": "price"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := SavePredictionsFile(predPath, Collection{1: NewLabelSet("price")}); err != nil {
		t.Fatalf("SavePredictionsFile() error = %v", err)
	}

	ann, err := LoadAnnotationsFile(annPath)
	if err != nil {
		t.Fatalf("LoadAnnotationsFile() error = %v", err)
	}
	pred, err := LoadPredictionsFile(predPath)
	if err != nil {
		t.Fatalf("LoadPredictionsFile() error = %v", err)
	}
	if !ann.Labels.Get(1).Equal(pred.Get(1)) {
		t.Errorf("expected matching labels, got %v and %v", ann.Labels.Get(1), pred.Get(1))
	}

	if _, err := LoadAnnotationsFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
