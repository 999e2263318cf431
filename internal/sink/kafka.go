// Package sink holds reading sinks that live outside the MQTT bridge.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"govee-decoder/pkg/types"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes readings to a topic keyed by device address, so each device
// stays on one partition.
type Kafka struct {
	w      messageWriter
	topic  string
	logger *slog.Logger
}

func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no brokers provided")
	}
	if topic == "" {
		return nil, fmt.Errorf("no topic provided")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	logger.Info("kafka sink configured", "brokers", brokers, "topic", topic)
	return &Kafka{w: w, topic: topic, logger: logger}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, reading types.GoveeReading) error {
	value, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(reading.Address),
		Value: value,
		Time:  reading.Timestamp,
		Headers: []kafka.Header{
			{Key: "model", Value: []byte(reading.Model)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	if err := k.w.Close(); err != nil {
		return fmt.Errorf("kafka close: %w", err)
	}
	return nil
}
