package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/matthewbaird/adbatch/internal/event"
)

// MessageWriter is the part of *kafka.Writer the consumer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaConsumer forwards batch events to a Kafka topic, keyed by batch so
// events of one batch stay ordered on a partition.
type KafkaConsumer struct {
	writer MessageWriter
	topic  string
}

// NewKafkaWriter builds the writer used by KafkaConsumer.
func NewKafkaWriter(brokers []string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka writer requires at least one broker")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}, nil
}

func NewKafkaConsumer(w MessageWriter, topic string) *KafkaConsumer {
	return &KafkaConsumer{writer: w, topic: topic}
}

func (c *KafkaConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	msg, err := Message(c.topic, evt)
	if err != nil {
		return err
	}
	if err := c.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s to kafka: %w", evt.EventType, err)
	}
	return nil
}

// Message maps an event onto a Kafka message.
func Message(topic string, evt event.DomainEvent) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event %s: %w", evt.ID, err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(evt.Platform + ":" + evt.AdvertiserID),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	}, nil
}
