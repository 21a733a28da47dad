package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// batchTimeout bounds how long a synchronous write waits to fill a batch.
const batchTimeout = 10 * time.Millisecond

// KafkaNotifier publishes each Message as a JSON record keyed by the entity ID.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           batchTimeout,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (k *KafkaNotifier) Notify(ctx context.Context, msg Message) error {
	record, err := kafkaMessage(ctx, msg)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("write %s to %s: %w", msg.Type, k.topic, err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

func kafkaMessage(ctx context.Context, msg Message) (kafka.Message, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	record := kafka.Message{
		Key:   []byte(msg.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(msg.Type)},
		},
	}
	carrier := &headerCarrier{headers: record.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	record.Headers = carrier.headers
	return record, nil
}

// SplitBrokers parses a comma-separated broker list, dropping blanks.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// headerCarrier lets the otel propagator write trace context into Kafka headers.
type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
