package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// LoggedEvent is one line of the event log.
type LoggedEvent struct {
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Event     Event     `json:"event"`
}

// EventLogger appends events to a JSON lines file so runs can be inspected
// or replayed later.
type EventLogger struct {
	path string

	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// NewEventLogger opens path for appending. An empty path yields a logger
// that records nothing.
func NewEventLogger(path string) (*EventLogger, error) {
	l := &EventLogger{path: path}
	if path == "" {
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
	return l, nil
}

// Enabled reports whether events are being written.
func (l *EventLogger) Enabled() bool {
	return l.path != ""
}

// Log appends one event.
func (l *EventLogger) Log(topic string, event Event) error {
	if !l.Enabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New(errors.CodeUnavailable, "event log is closed")
	}
	if err := l.encoder.Encode(LoggedEvent{Topic: topic, Timestamp: time.Now(), Event: event}); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// Events reads logged events newer than since, oldest first. limit <= 0 means all.
// Malformed lines are skipped.
func (l *EventLogger) Events(since time.Time, limit int) ([]LoggedEvent, error) {
	if !l.Enabled() {
		return nil, errors.New(errors.CodeUnavailable, "event logging is disabled")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	const maxLine = 1 << 20
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var events []LoggedEvent
	for scanner.Scan() {
		var e LoggedEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !e.Timestamp.After(since) {
			continue
		}
		events = append(events, e)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, nil
}

// Replay publishes every logged event newer than since to b, in order.
func (l *EventLogger) Replay(ctx context.Context, b Bus, since time.Time) (int, error) {
	events, err := l.Events(since, 0)
	if err != nil {
		return 0, err
	}

	for i, e := range events {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := b.Publish(ctx, e.Topic, e.Event); err != nil {
			return i, fmt.Errorf("failed to replay event %s: %w", e.Event.ID, err)
		}
	}
	return len(events), nil
}

// Close closes the log file.
func (l *EventLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.encoder = nil
	if err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	return nil
}
