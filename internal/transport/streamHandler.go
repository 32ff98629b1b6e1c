package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/himanshumudigonda/musclemeter/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	streamBuffer      = 32
	defaultHeartbeat  = 15 * time.Second
	snapshotEventName = "snapshot"
)

var errSlowSubscriber = errors.New("stream subscriber is not keeping up")

// StreamHandler exposes venue events as Server-Sent Events. A client first
// receives the venue snapshot, then every event published after it subscribed.
type StreamHandler struct {
	venueService service.VenueService
	broker       pubsub.Broker
	heartbeat    time.Duration

	closed    chan struct{}
	closeOnce sync.Once
}

// NewStreamHandler serves venue event streams. A heartbeat <= 0 uses defaultHeartbeat.
func NewStreamHandler(venueService service.VenueService, broker pubsub.Broker, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &StreamHandler{
		venueService: venueService,
		broker:       broker,
		heartbeat:    heartbeat,
		closed:       make(chan struct{}),
	}
}

// Close ends every open stream. Call it before shutting the HTTP server down.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

func (h *StreamHandler) Stream(c *gin.Context) {
	venueID := c.Param("id")
	ctx := c.Request.Context()

	events := make(chan pubsub.Event, streamBuffer)
	overflow := make(chan struct{})
	var once sync.Once

	// Subscribe before reading the snapshot so no committed change falls between them.
	sub := h.broker.Subscribe(venueID, func(_ context.Context, ev pubsub.Event) error {
		select {
		case events <- ev:
			return nil
		default:
		}
		once.Do(func() { close(overflow) })
		return errSlowSubscriber
	})
	defer h.broker.Unsubscribe(sub)

	details, err := h.venueService.GetVenue(ctx, venueID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(snapshotEventName, details)
	c.Writer.Flush()

	log := logrus.WithField("venue_id", venueID)
	log.Debug("Venue stream opened")
	defer log.Debug("Venue stream closed")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-h.closed:
			return false
		case <-overflow:
			// The client reconnects and starts again from a fresh snapshot.
			log.Warn("Closing venue stream: subscriber fell behind")
			return false
		case ev := <-events:
			c.SSEvent(string(ev.Type), ev)
			return true
		case t := <-ticker.C:
			c.SSEvent("ping", t.UTC())
			return true
		}
	})
}
