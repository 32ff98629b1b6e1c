package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultChannelPrefix = "venue:"

// RedisHub publishes events on Redis channels so that every instance sharing
// the Redis server relays them to its own local subscribers. Run must be
// started for local subscribers to receive anything.
type RedisHub struct {
	client *redis.Client
	local  *Hub
	prefix string
}

// NewRedisHub relays venue events through Redis channels named prefix+venueID.
// Run must be started for remote events to reach local subscribers.
func NewRedisHub(client *redis.Client, prefix string) *RedisHub {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisHub{
		client: client,
		local:  NewHub(),
		prefix: prefix,
	}
}

func (r *RedisHub) channel(venueID string) string {
	return r.prefix + venueID
}

func (r *RedisHub) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(ev.VenueID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (r *RedisHub) Subscribe(venueID string, h Handler) Subscription {
	return r.local.Subscribe(venueID, h)
}

func (r *RedisHub) Unsubscribe(sub Subscription) {
	r.local.Unsubscribe(sub)
}

// Run relays messages from the venue channels into the local hub until ctx is done.
func (r *RedisHub) Run(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, r.prefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to venue channels: %w", err)
	}
	logrus.WithField("pattern", r.prefix+"*").Info("Venue event relay started")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Venue event relay stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logrus.Warnf("Dropping malformed venue event on %s: %v", msg.Channel, err)
				continue
			}
			if ev.VenueID == "" {
				ev.VenueID = strings.TrimPrefix(msg.Channel, r.prefix)
			}
			r.local.Publish(ctx, ev)
		}
	}
}
