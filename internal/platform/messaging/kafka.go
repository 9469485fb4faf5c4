package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"campusvote/internal/shared/events"
)

const defaultGroupBuffer = 128

// Kafka is the event bus between the notification relay and its consumer.
// Delivery is in-process with consumer-group semantics: every group on a
// topic sees each event once, and members of one group compete for it.
// A full group buffer drops the event; the outbox row stays dispatched.
type Kafka struct {
	mu     sync.Mutex
	topics map[string]map[string]*consumerGroup
	buffer int
	logger *slog.Logger
}

type consumerGroup struct {
	name    string
	events  chan events.Envelope
	members int
}

func NewKafka(brokers []string, logger *slog.Logger) (*Kafka, error) {
	return NewKafkaWithBuffer(brokers, defaultGroupBuffer, logger)
}

// NewKafkaWithBuffer sets the per-group queue depth.
func NewKafkaWithBuffer(brokers []string, buffer int, logger *slog.Logger) (*Kafka, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		return nil, errors.New("event bus buffer must be positive")
	}
	logger.Info("event bus initialized",
		"event", "kafka_bus_initialized",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"brokers", strings.Join(brokers, ","),
		"group_buffer", buffer,
	)
	return &Kafka{
		topics: make(map[string]map[string]*consumerGroup),
		buffer: buffer,
		logger: logger,
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, event events.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k.mu.Lock()
	groups := make([]*consumerGroup, 0, len(k.topics[topic]))
	for _, group := range k.topics[topic] {
		groups = append(groups, group)
	}
	k.mu.Unlock()

	for _, group := range groups {
		select {
		case group.events <- event:
		default:
			k.logger.Warn("dropping event for saturated consumer group",
				"event", "kafka_publish_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", group.name,
				"event_id", event.EventID,
			)
		}
	}

	k.logger.Debug("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"groups", len(groups),
	)
	return nil
}

// Subscribe joins consumerGroup on topic until ctx is cancelled.
func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	topic = strings.TrimSpace(topic)
	consumerGroup = strings.TrimSpace(consumerGroup)
	if topic == "" || consumerGroup == "" {
		return errors.New("topic and consumer group are required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	group := k.join(topic, consumerGroup)

	go func() {
		defer k.leave(topic, group)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-group.events:
				if err := handler(ctx, event); err != nil {
					k.logger.Error("consumer handler failed",
						"event", "kafka_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (k *Kafka) join(topic string, name string) *consumerGroup {
	k.mu.Lock()
	defer k.mu.Unlock()
	groups, ok := k.topics[topic]
	if !ok {
		groups = make(map[string]*consumerGroup)
		k.topics[topic] = groups
	}
	group, ok := groups[name]
	if !ok {
		group = &consumerGroup{name: name, events: make(chan events.Envelope, k.buffer)}
		groups[name] = group
	}
	group.members++
	return group
}

// leave drops the group once its last member is gone. Buffered events of a
// dropped group are discarded.
func (k *Kafka) leave(topic string, group *consumerGroup) {
	k.mu.Lock()
	defer k.mu.Unlock()
	group.members--
	if group.members > 0 {
		return
	}
	delete(k.topics[topic], group.name)
	if len(k.topics[topic]) == 0 {
		delete(k.topics, topic)
	}
}

// Groups reports the active consumer groups on topic.
func (k *Kafka) Groups(topic string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.topics[topic])
}
