package classify

import "strings"

// answerMarker introduces the final topic list in model answers. Anything
// before it is treated as reasoning.
const answerMarker = "predicted_topics:"

// ParseAnswer extracts the topics mentioned in a model answer. Matching is
// case-insensitive substring search; topics containing underscores also match
// with spaces in their place. The result follows the order of topics and is
// empty, never nil, when nothing matches.
func ParseAnswer(answer string, topics []Topic) []Topic {
	text := strings.ToLower(answer)
	if i := strings.Index(text, answerMarker); i >= 0 {
		text = text[i+len(answerMarker):]
		if j := strings.Index(text, answerMarker); j >= 0 {
			text = text[:j]
		}
	}

	out := make([]Topic, 0, len(topics))
	for _, t := range topics {
		name := strings.ToLower(string(t))
		if strings.Contains(text, name) ||
			(strings.Contains(name, "_") && strings.Contains(text, strings.ReplaceAll(name, "_", " "))) {
			out = append(out, t)
		}
	}
	return out
}
