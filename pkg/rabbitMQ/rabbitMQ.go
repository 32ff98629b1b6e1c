package rabbitMQ

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RabbitMQ publishes venue events to a durable topic exchange. The routing
// key is the event type, so consumers bind to patterns like "booking.*".
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  RabbitMQConfig
	domains map[string]bool
}

type RabbitMQConfig struct {
	URL          string
	ExchangeName string
	// Domains limits the forwarded events, e.g. "booking". Empty forwards everything.
	Domains []string
}

// NewRabbitMQ dials the broker and declares a durable topic exchange.
// Consumers bind their own queues.
func NewRabbitMQ(config RabbitMQConfig) (*RabbitMQ, error) {
	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		config.ExchangeName, // name
		"topic",             // kind
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logrus.WithField("exchange", config.ExchangeName).Info("Connected to RabbitMQ")
	return &RabbitMQ{
		conn:    conn,
		channel: channel,
		config:  config,
		domains: domainSet(config.Domains),
	}, nil
}

func domainSet(domains []string) map[string]bool {
	if len(domains) == 0 {
		return nil
	}
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		set[d] = true
	}
	return set
}

// Accepts reports whether events of type t are forwarded.
func (r *RabbitMQ) Accepts(t pubsub.EventType) bool {
	return r.domains == nil || r.domains[t.Domain()]
}

func (r *RabbitMQ) PublishEvent(ctx context.Context, ev pubsub.Event) error {
	if !r.Accepts(ev.Type) {
		return nil
	}

	publishing, err := newPublishing(ev)
	if err != nil {
		return err
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.config.ExchangeName, // exchange
		string(ev.Type),       // routing key
		false,                 // mandatory
		false,                 // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func newPublishing(ev pubsub.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	timestamp := ev.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    timestamp,
		Type:         string(ev.Type),
		Headers:      amqp.Table{"venue_id": ev.VenueID},
	}, nil
}

func (r *RabbitMQ) Close() error {
	var errs []error

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing RabbitMQ: %v", errs)
	}
	return nil
}

func (r *RabbitMQ) HealthCheck(context.Context) error {
	if r.conn == nil || r.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is closed")
	}
	return nil
}
