package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits domain events to Kafka. The Kafka topic is the event
// topic; the message key is the configuration id so events for one record
// stay ordered within a partition.
type KafkaPublisher struct {
	w   messageWriter
	now func() time.Time
}

// NewKafkaPublisher returns a publisher writing to brokers.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	})
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w, now: func() time.Time { return time.Now().UTC() }}
}

// DomainEventMeta describes an outgoing Kafka message.
type DomainEventMeta struct {
	CorrelationID string    `json:"correlation_id,omitempty"`
	EventType     string    `json:"event_type"`
	Source        string    `json:"source"`
	Producer      string    `json:"producer"`
	Timestamp     time.Time `json:"timestamp"`
}

// DomainEvent is the Kafka message value: a compact message plus metadata.
type DomainEvent struct {
	Message map[string]any  `json:"message"`
	Meta    DomainEventMeta `json:"meta"`
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event any) error {
	message, key, correlationID := kafkaMessage(event)
	if message == nil {
		return nil
	}
	if correlationID == "" {
		correlationID = CorrelationIDFromContext(ctx)
	}

	now := p.now()
	value, err := json.Marshal(DomainEvent{
		Message: message,
		Meta: DomainEventMeta{
			CorrelationID: correlationID,
			EventType:     topic,
			Source:        Source,
			Producer:      Source,
			Timestamp:     now,
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling kafka event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(topic)},
			{Key: "source", Value: []byte(Source)},
		},
	}
	if correlationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "correlation_id", Value: []byte(correlationID)})
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to kafka topic %s: %w", topic, err)
	}
	return nil
}

// kafkaMessage reduces an event to its Kafka message: the record fields
// without the full configuration body. System events are not sent to Kafka.
func kafkaMessage(event any) (message map[string]any, key, correlationID string) {
	switch e := event.(type) {
	case ConfigurationCreated:
		return map[string]any{
			"configuration_id": e.ConfigurationID,
			"key":              e.Key,
			"label":            e.Label,
			"data_type":        e.DataType,
			"created_at":       e.CreatedAt.Format(time.RFC3339Nano),
		}, e.ConfigurationID, e.CorrelationID
	case ConfigurationUpdated:
		return map[string]any{
			"configuration_id": e.ConfigurationID,
			"key":              e.Key,
			"label":            e.Label,
			"data_type":        e.DataType,
			"updated_at":       e.UpdatedAt.Format(time.RFC3339Nano),
			"changes":          e.Changes,
		}, e.ConfigurationID, e.CorrelationID
	case ConfigurationDeleted:
		return map[string]any{
			"configuration_id": e.ConfigurationID,
			"key":              e.Key,
			"label":            e.Label,
			"data_type":        e.DataType,
			"deleted_at":       e.DeletedAt.Format(time.RFC3339Nano),
		}, e.ConfigurationID, e.CorrelationID
	}
	return nil, "", ""
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
