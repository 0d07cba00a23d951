// Package kafka publishes payment lifecycle events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes payment events keyed by user so one buyer's events stay ordered
type Publisher struct {
	writer MessageWriter
	log    logrus.FieldLogger
}

// NewPublisher creates a publisher for cfg.PaymentTopic
func NewPublisher(cfg config.KafkaConfig, log logrus.FieldLogger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.PaymentTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return NewPublisherWithWriter(writer, log)
}

// NewPublisherWithWriter wraps an existing writer
func NewPublisherWithWriter(writer MessageWriter, log logrus.FieldLogger) *Publisher {
	return &Publisher{writer: writer, log: log.WithField("component", "payment-events")}
}

// Publish implements checkout.EventPublisher
func (p *Publisher) Publish(ctx context.Context, event checkout.PaymentEvent) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	p.log.WithFields(logrus.Fields{
		"type":       event.Type,
		"payment_id": event.PaymentID,
	}).Debug("Published payment event")
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encode(event checkout.PaymentEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.UserID.String()),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}, nil
}
