// Package bus carries classification and evaluation events between the
// components of a run and to outside consumers.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe registers handler for every later event on topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close releases resources. Publishing after Close fails.
	Close() error
}

// Event represents a bus event.
type Event struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Source        string `json:"source"`
	Timestamp     int64  `json:"timestamp"` // unix milliseconds
	CorrelationID string `json:"correlation_id,omitempty"`
	Payload       any    `json:"payload"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(eventType, source string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// Topics.
const (
	// TopicReviewClassified carries one classified review.
	TopicReviewClassified = "review.classified"
	// TopicClassifyCompleted is published once a classification run ends.
	TopicClassifyCompleted = "classify.completed"
	// TopicEvaluationCompleted carries the headline scores of an evaluation run.
	TopicEvaluationCompleted = "evaluation.completed"
)

// Topics lists every topic published by this module.
var Topics = []string{TopicReviewClassified, TopicClassifyCompleted, TopicEvaluationCompleted}
