package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Producer streams occupancy changes to a topic keyed by venue id, so every
// venue's updates stay ordered within one partition.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

// NewProducer creates the topic if it does not exist yet and returns a
// producer writing to it.
func NewProducer(ctx context.Context, cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		logrus.WithField("topic", cfg.Topic).Debugf("Could not create topic (might already exist): %v", err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logrus.WithFields(logrus.Fields{
		"brokers": strings.Join(cfg.Brokers, ","),
		"topic":   cfg.Topic,
	}).Info("Connected to Kafka")
	return &Producer{writer: writer, topic: cfg.Topic}, nil
}

// PublishEvent forwards occupancy events and ignores everything else.
func (p *Producer) PublishEvent(ctx context.Context, ev pubsub.Event) error {
	if ev.Type != pubsub.EventOccupancyChanged {
		return nil
	}

	msg, err := newMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func newMessage(ev pubsub.Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.VenueID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
