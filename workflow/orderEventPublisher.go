package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/realtime"
)

// OrderEventPublisher delivers one order event. The returned id is whatever
// the transport assigns (Pub/Sub message id), empty when it has none.
type OrderEventPublisher interface {
	Publish(ctx context.Context, msg config.OrderEventMessage) (string, error)
}

// RegistryPublisher broadcasts to the sockets connected to this process.
// Per-socket failures are counted by the registry and are not an error here.
type RegistryPublisher struct {
	Registry *realtime.Registry
}

func (p *RegistryPublisher) Publish(ctx context.Context, msg config.OrderEventMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !json.Valid(msg.Payload) {
		return "", fmt.Errorf("order event %s has an invalid payload", msg.EventId)
	}
	p.Registry.BroadcastToRole(msg.Role, msg.Payload)
	return "", nil
}

// PubSubPublisher sends the event to ORDER_EVENTS_TOPIC; every instance's
// push subscription rebroadcasts it to its own sockets.
type PubSubPublisher struct{}

func (PubSubPublisher) Publish(ctx context.Context, msg config.OrderEventMessage) (string, error) {
	return config.PublishOrderEventWithResult(ctx, msg)
}

// NewOrderEventPublisher picks Pub/Sub when ORDER_EVENTS_PUBSUB is on.
func NewOrderEventPublisher(registry *realtime.Registry) OrderEventPublisher {
	if config.PubSubRelayEnabled() {
		return PubSubPublisher{}
	}
	return &RegistryPublisher{Registry: registry}
}
