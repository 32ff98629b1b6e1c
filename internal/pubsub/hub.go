// Package pubsub fans out venue change notifications to subscribers.
package pubsub

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventOccupancyChanged EventType = "occupancy.changed"
	EventBookingCreated   EventType = "booking.created"
	EventBookingApproved  EventType = "booking.approved"
	EventBookingRejected  EventType = "booking.rejected"
	EventBookingExpired   EventType = "booking.expired"
	EventVenueUpdated     EventType = "venue.updated"
)

// Event is a committed venue mutation with the new state attached.
type Event struct {
	Type       EventType       `json:"type"`
	VenueID    string          `json:"venue_id"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent marshals payload into an event for venueID.
func NewEvent(t EventType, venueID string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, VenueID: venueID, Payload: data, OccurredAt: time.Now().UTC()}, nil
}

// Handler receives events for one venue. Returned errors are logged.
type Handler func(ctx context.Context, ev Event) error

// Subscription identifies a registered handler.
type Subscription struct {
	VenueID string
	id      uint64
}

// Broker is the publish/subscribe surface used by the services.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(venueID string, h Handler) Subscription
	Unsubscribe(sub Subscription)
}

// Hub is an in-process Broker. Publish delivers synchronously to every handler
// registered for the venue at the time of the call; nothing is buffered for
// later subscribers.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]Handler
}

// NewHub returns an in-process broker.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]Handler)}
}

func (h *Hub) Subscribe(venueID string, handler Handler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	if h.subs[venueID] == nil {
		h.subs[venueID] = make(map[uint64]Handler)
	}
	h.subs[venueID][h.nextID] = handler
	return Subscription{VenueID: venueID, id: h.nextID}
}

// Unsubscribe removes the handler. Unknown or repeated subscriptions are ignored.
func (h *Hub) Unsubscribe(sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	handlers, ok := h.subs[sub.VenueID]
	if !ok {
		return
	}
	delete(handlers, sub.id)
	if len(handlers) == 0 {
		delete(h.subs, sub.VenueID)
	}
}

func (h *Hub) Publish(ctx context.Context, ev Event) error {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[ev.VenueID]))
	for _, handler := range h.subs[ev.VenueID] {
		handlers = append(handlers, handler)
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, ev); err != nil {
			logrus.WithFields(logrus.Fields{
				"venue_id": ev.VenueID,
				"event":    ev.Type,
			}).Warnf("subscriber failed: %v", err)
		}
	}
	return nil
}

// Subscribers returns the number of handlers registered for venueID.
func (h *Hub) Subscribers(venueID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[venueID])
}

// Domain is the part of the event type before the first dot, e.g. "booking".
func (t EventType) Domain() string {
	if i := strings.IndexByte(string(t), '.'); i >= 0 {
		return string(t[:i])
	}
	return string(t)
}
