package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
	"github.com/ricesearch/review-topics/internal/pkg/logger"
)

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers       []string      // broker addresses
	ConsumerGroup string        // consumer group ID
	ClientID      string        // client identifier
	Version       string        // protocol version, e.g. "2.8.0"
	TopicPrefix   string        // prepended to every bus topic
	Timeout       time.Duration // network timeout (default: 10s)
}

// KafkaBus publishes events as JSON messages on Kafka topics.
type KafkaBus struct {
	config   KafkaConfig
	client   sarama.Client
	producer sarama.SyncProducer
	consumer sarama.ConsumerGroup
	log      *logger.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool

	consumers sync.WaitGroup
	stop      chan struct{}
}

// NewKafkaBus connects to the brokers in cfg.
func NewKafkaBus(cfg KafkaConfig, log *logger.Logger) (*KafkaBus, error) {
	saramaCfg, err := cfg.saramaConfig()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}

	client, err := sarama.NewClient(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, errors.ServiceUnavailableError("kafka", err).WithDetail("brokers", strings.Join(cfg.Brokers, ","))
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka producer", err)
	}

	consumer, err := sarama.NewConsumerGroupFromClient(cfg.ConsumerGroup, client)
	if err != nil {
		producer.Close()
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka consumer group", err)
	}

	return &KafkaBus{
		config:   cfg,
		client:   client,
		producer: producer,
		consumer: consumer,
		log:      log,
		handlers: make(map[string][]Handler),
		stop:     make(chan struct{}),
	}, nil
}

// saramaConfig validates cfg, fills defaults and builds the client config.
func (cfg *KafkaConfig) saramaConfig() (*sarama.Config, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeValidation, "kafka brokers cannot be empty")
	}
	if cfg.ConsumerGroup == "" {
		return nil, errors.New(errors.CodeValidation, "kafka consumer group cannot be empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "review-topics"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid kafka version", err)
	}

	c := sarama.NewConfig()
	c.Version = version
	c.ClientID = cfg.ClientID
	c.Producer.Return.Successes = true
	c.Producer.Return.Errors = true
	c.Producer.Retry.Max = 3
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	c.Consumer.Offsets.Initial = sarama.OffsetNewest
	c.Consumer.Return.Errors = true
	c.Net.DialTimeout = cfg.Timeout
	c.Net.ReadTimeout = cfg.Timeout
	c.Net.WriteTimeout = cfg.Timeout
	return c, nil
}

// kafkaTopic maps a bus topic to its Kafka topic name.
func (cfg KafkaConfig) kafkaTopic(topic string) string {
	return cfg.TopicPrefix + topic
}

// Publish serializes event and sends it synchronously.
func (b *KafkaBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	msg, err := newProducerMessage(b.config.kafkaTopic(topic), event)
	if err != nil {
		return err
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to publish to kafka", err)
	}
	return nil
}

// newProducerMessage encodes event as a keyed JSON message.
func newProducerMessage(topic string, event Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "failed to marshal event", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.ID),
		Value: sarama.ByteEncoder(data),
	}
	if event.CorrelationID != "" {
		msg.Headers = []sarama.RecordHeader{
			{Key: []byte("correlation_id"), Value: []byte(event.CorrelationID)},
		}
	}
	return msg, nil
}

// Subscribe registers handler and starts a consumer on first use of topic.
func (b *KafkaBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	first := len(b.handlers[topic]) == 0
	b.handlers[topic] = append(b.handlers[topic], handler)
	if first {
		b.consumers.Add(1)
		go b.consume(topic)
	}
	return nil
}

func (b *KafkaBus) consume(topic string) {
	defer b.consumers.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-b.stop
		cancel()
	}()

	handler := &groupHandler{bus: b, topic: topic}
	for {
		if err := b.consumer.Consume(ctx, []string{b.config.kafkaTopic(topic)}, handler); err != nil {
			b.log.Warn("Kafka consumer error", "topic", topic, "error", err.Error())
		}

		select {
		case <-b.stop:
			return
		case <-time.After(time.Second):
		}
	}
}

func (b *KafkaBus) dispatch(ctx context.Context, topic string, event Event) {
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.log.Warn("Event handler failed", "topic", topic, "event_id", event.ID, "error", err.Error())
		}
	}
}

// Close stops consumers and releases the Kafka client.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stop)
	b.consumers.Wait()

	var failed []string
	if err := b.consumer.Close(); err != nil {
		failed = append(failed, "consumer: "+err.Error())
	}
	if err := b.producer.Close(); err != nil {
		failed = append(failed, "producer: "+err.Error())
	}
	if err := b.client.Close(); err != nil {
		failed = append(failed, "client: "+err.Error())
	}
	if len(failed) > 0 {
		return errors.New(errors.CodeInternal, "errors during close: "+strings.Join(failed, "; "))
	}
	return nil
}

// groupHandler implements sarama.ConsumerGroupHandler for one bus topic.
type groupHandler struct {
	bus   *KafkaBus
	topic string
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim decodes each message and hands it to the topic's handlers.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				h.bus.log.Warn("Dropping undecodable kafka message", "topic", h.topic, "offset", msg.Offset, "error", err.Error())
			} else {
				h.bus.dispatch(session.Context(), h.topic, event)
			}
			session.MarkMessage(msg, "")
		}
	}
}

// ParseKafkaBrokers parses a comma-separated broker list, dropping blanks.
func ParseKafkaBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
