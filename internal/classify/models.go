package classify

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// KnownModels lists the model names runs are usually made with.
var KnownModels = []string{
	"llama3.2",
	"llama3.2:1b",
	"mistral",
	"smallthinker",
	"deepseek-r1:7b",
	"deepseek-r1:1.5b",
}

// UnknownModel is reported when a file name names no known model.
const UnknownModel = "nomodel"

// timestampLayout renders local time with microseconds, without zone.
const timestampLayout = "2006-01-02T15:04:05.000000"

// ModelFromFilename infers the model a prediction file was produced with.
// Both "llama3.2:1b" and its file-safe form "llama3.2_1b" are recognized,
// and longer names win over their prefixes.
func ModelFromFilename(path string) string {
	name := filepath.Base(path)

	candidates := make([]string, len(KnownModels))
	copy(candidates, KnownModels)
	sort.SliceStable(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })

	for _, model := range candidates {
		if strings.Contains(name, model) || strings.Contains(name, fileSafe(model)) {
			return model
		}
	}
	return UnknownModel
}

// OutputFilename names a classification result file. n <= 0 means all reviews.
func OutputFilename(version int, created time.Time, n int, model string) string {
	count := "all"
	if n > 0 {
		count = fmt.Sprint(n)
	}
	return fileSafe(fmt.Sprintf("annotations-v%d-%s-n%s-%s.json", version, created.Local().Format(timestampLayout), count, model))
}

// EvalFilename names an evaluation report file. Like OutputFilename it
// stamps the name with local time, whatever the zone of created.
func EvalFilename(model string, created time.Time) string {
	return fileSafe(fmt.Sprintf("eval_%s_%s.json", model, created.Local().Format(timestampLayout)))
}

func fileSafe(name string) string {
	return strings.ReplaceAll(name, ":", "_")
}
