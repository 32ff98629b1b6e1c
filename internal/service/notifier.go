package service

import (
	"context"

	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/sirupsen/logrus"
)

// notifier publishes committed mutations to the venue broker and the external
// event publishers. Delivery failures are logged and never fail the mutation.
type notifier struct {
	broker     pubsub.Broker
	publishers []EventPublisher
}

func newNotifier(broker pubsub.Broker, publishers []EventPublisher) *notifier {
	return &notifier{broker: broker, publishers: publishers}
}

func (n *notifier) emit(ctx context.Context, typ pubsub.EventType, venueID string, payload interface{}) {
	n.emitScoped(ctx, typ, venueID, payload, payload)
}

// emitScoped sends public to the venue broker, whose subscribers include
// anonymous stream clients, and full to the external publishers.
func (n *notifier) emitScoped(ctx context.Context, typ pubsub.EventType, venueID string, public, full interface{}) {
	if n == nil {
		return
	}
	fields := logrus.Fields{"venue_id": venueID, "event": typ}

	if n.broker != nil {
		ev, err := pubsub.NewEvent(typ, venueID, public)
		if err != nil {
			logrus.WithFields(fields).Errorf("failed to build event: %v", err)
		} else if err := n.broker.Publish(ctx, ev); err != nil {
			logrus.WithFields(fields).Warnf("failed to publish event: %v", err)
		}
	}

	if len(n.publishers) == 0 {
		return
	}
	ev, err := pubsub.NewEvent(typ, venueID, full)
	if err != nil {
		logrus.WithFields(fields).Errorf("failed to build event: %v", err)
		return
	}
	for _, p := range n.publishers {
		if err := p.PublishEvent(ctx, ev); err != nil {
			logrus.WithFields(fields).Warnf("failed to forward event: %v", err)
		}
	}
}
