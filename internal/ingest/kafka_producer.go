package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/taxi-backend/internal/models"
)

// Publisher emits domain events. A nil implementation is acceptable;
// callers treat publish failures as non-fatal.
type Publisher interface {
	PublishRideEvent(ev models.RideEvent) error
	PublishDriverEvent(ev models.DriverEvent) error
	Close() error
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) PublishRideEvent(ev models.RideEvent) error {
	return k.publish(ev.RideID, ev)
}

func (k *KafkaProducer) PublishDriverEvent(ev models.DriverEvent) error {
	return k.publish(ev.DriverID, ev)
}

func (k *KafkaProducer) publish(key string, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(payload)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishRideEvent(models.RideEvent) error     { return nil }
func (NopPublisher) PublishDriverEvent(models.DriverEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }
