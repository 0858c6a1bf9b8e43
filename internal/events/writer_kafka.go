package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/segmentio/kafka-go"
)

const kafkaPublishTimeout = 10 * time.Second

// KafkaWriter publishes events in structured CloudEvents JSON mode.
type KafkaWriter struct {
	writer *kafka.Writer
}

func NewKafkaWriter(brokers ...string) *KafkaWriter {
	return &KafkaWriter{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *KafkaWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", e.ID(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, kafkaPublishTimeout)
	defer cancel()

	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(e.Subject()),
		Value: value,
		Time:  e.Time(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(cloudevents.ApplicationCloudEventsJSON)},
		},
	})
}

func (k *KafkaWriter) Close(_ context.Context) error {
	return k.writer.Close()
}
