// Package rabbitmq consumes catalog deletion events published by other
// services and purges the cart and wishlist rows that referenced them.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
)

// DeletionHandler reacts to a deleted sellable entity
type DeletionHandler interface {
	OnEntityDeleted(ctx context.Context, ref purchasable.Ref) error
}

// Recorder counts handled events by result
type Recorder interface {
	CatalogEventHandled(result string)
}

// DeletedEvent is the message body of catalog.<kind>.deleted
type DeletedEvent struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type disposition int

const (
	ack disposition = iota
	requeue
	drop
)

// Consumer reads deletion events from a topic exchange
type Consumer struct {
	cfg      config.RabbitMQConfig
	handler  DeletionHandler
	recorder Recorder
	log      logrus.FieldLogger

	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewConsumer creates a consumer; call Start to connect
func NewConsumer(cfg config.RabbitMQConfig, handler DeletionHandler, recorder Recorder, log logrus.FieldLogger) *Consumer {
	return &Consumer{
		cfg:      cfg,
		handler:  handler,
		recorder: recorder,
		log:      log.WithField("component", "catalog-consumer"),
	}
}

// Start declares the topology and consumes until ctx is done or the channel closes
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	c.conn, c.ch = conn, ch

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		c.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		c.Close()
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		c.Close()
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"exchange":    c.cfg.Exchange,
		"queue":       q.Name,
		"routing_key": c.cfg.RoutingKey,
	}).Info("🐇 Consuming catalog deletion events")

	go c.loop(ctx, deliveries)
	return nil
}

func (c *Consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				c.log.Warn("Deliveries channel closed")
				return
			}
			var err error
			switch c.process(ctx, d.RoutingKey, d.Body) {
			case ack:
				err = d.Ack(false)
			case requeue:
				err = d.Nack(false, true)
			case drop:
				err = d.Nack(false, false)
			}
			if err != nil {
				c.log.WithError(err).Error("Failed to settle delivery")
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, routingKey string, body []byte) disposition {
	ref, err := decodeEvent(routingKey, body)
	if err != nil {
		c.log.WithError(err).WithField("routing_key", routingKey).Warn("Dropping malformed catalog event")
		c.recorder.CatalogEventHandled("malformed")
		return drop
	}

	if err := c.handler.OnEntityDeleted(ctx, ref); err != nil {
		c.log.WithError(err).WithField("item", ref.String()).Error("Failed to clean up deleted item, requeueing")
		c.recorder.CatalogEventHandled("requeued")
		return requeue
	}

	c.recorder.CatalogEventHandled("ok")
	return ack
}

// decodeEvent reads the ref from the body, falling back to the kind segment
// of catalog.<kind>.deleted when the body omits it.
func decodeEvent(routingKey string, body []byte) (purchasable.Ref, error) {
	var evt DeletedEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return purchasable.Ref{}, fmt.Errorf("invalid event body: %w", err)
	}

	if evt.Kind == "" {
		parts := strings.Split(routingKey, ".")
		if len(parts) != 3 || parts[2] != "deleted" {
			return purchasable.Ref{}, errors.New("event kind missing")
		}
		evt.Kind = parts[1]
	}
	return purchasable.NewRef(evt.Kind, evt.ID)
}

// Close closes the channel and connection
func (c *Consumer) Close() error {
	var errs []error
	if c.ch != nil {
		errs = append(errs, c.ch.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}
