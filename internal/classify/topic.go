// Package classify assigns topics to reviews with a chat model.
package classify

import (
	"fmt"
	"strings"

	"github.com/ricesearch/review-topics/internal/labels"
	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// Topic is a category a review can be assigned to. It never contains whitespace.
type Topic string

// DefaultTopics is the topic list used when none is configured.
var DefaultTopics = []Topic{
	"gamemode",
	"bugs",
	"visuals",
	"sound",
	"hardware_requirements",
	"price",
	"gameplay",
	"story",
	"support",
	"online_play",
	"updates",
	"seasonal_content",
}

// NewTopic validates s and returns it as a Topic.
func NewTopic(s string) (Topic, error) {
	if err := labels.ValidateLabel(s); err != nil {
		return "", errors.ValidationError(fmt.Sprintf("invalid topic %q", s)).WithDetail("field", "topic")
	}
	return Topic(s), nil
}

// ParseTopics parses a comma separated topic list. Blank entries are skipped
// and duplicates are rejected.
func ParseTopics(list string) ([]Topic, error) {
	var out []Topic
	seen := make(map[Topic]bool)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := NewTopic(part)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			return nil, errors.ValidationError(fmt.Sprintf("duplicate topic %q", t))
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errors.ValidationError("topic list is empty")
	}
	return out, nil
}

// joinTopics renders topics the way prompts list them.
func joinTopics(topics []Topic) string {
	parts := make([]string, len(topics))
	for i, t := range topics {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}
