package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// Placeholders substituted by Prompt.Build.
const (
	ReviewPlaceholder = "$Review$"
	TopicsPlaceholder = "$Topics$"
)

// Prompt is a versioned system prompt plus user prompt template.
type Prompt struct {
	Version  int
	System   string
	Template string
}

// LoadPrompt reads system_v<version>.txt and prompt_v<version>.txt from dir.
func LoadPrompt(dir string, version int) (*Prompt, error) {
	if version < 1 {
		return nil, errors.ValidationError(fmt.Sprintf("prompt version must be positive, got %d", version))
	}

	system, err := readPromptFile(dir, fmt.Sprintf("system_v%d.txt", version))
	if err != nil {
		return nil, err
	}
	template, err := readPromptFile(dir, fmt.Sprintf("prompt_v%d.txt", version))
	if err != nil {
		return nil, err
	}
	if !strings.Contains(template, ReviewPlaceholder) {
		return nil, errors.ValidationError(fmt.Sprintf("prompt_v%d.txt has no %s placeholder", version, ReviewPlaceholder))
	}

	return &Prompt{Version: version, System: system, Template: template}, nil
}

func readPromptFile(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFoundError("prompt file " + path)
		}
		return "", fmt.Errorf("reading prompt %s: %w", path, err)
	}
	return string(data), nil
}

// Build fills the template with the review text and the topic list.
func (p *Prompt) Build(review string, topics []Topic) string {
	return strings.NewReplacer(
		ReviewPlaceholder, review,
		TopicsPlaceholder, joinTopics(topics),
	).Replace(p.Template)
}
