package bus

import (
	"fmt"
	"strings"

	"github.com/ricesearch/review-topics/internal/config"
	"github.com/ricesearch/review-topics/internal/pkg/errors"
	"github.com/ricesearch/review-topics/internal/pkg/logger"
)

// NewBus creates the bus selected by cfg, wrapped in a LoggedBus when an
// event log path is configured.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	var inner Bus
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		inner = NewMemoryBus(log)

	case "kafka":
		group := cfg.KafkaGroup
		if group == "" {
			group = "review-topics"
		}
		kb, err := NewKafkaBus(KafkaConfig{
			Brokers:       ParseKafkaBrokers(cfg.KafkaBrokers),
			ConsumerGroup: group,
			TopicPrefix:   cfg.KafkaTopicPrefix,
		}, log)
		if err != nil {
			return nil, err
		}
		inner = kb

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.EventLog == "" {
		return inner, nil
	}
	events, err := NewEventLogger(cfg.EventLog)
	if err != nil {
		inner.Close()
		return nil, err
	}
	return NewLoggedBus(inner, events, log), nil
}
