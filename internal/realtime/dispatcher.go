package realtime

import "context"

// PublishFunc hands a message to the cross-instance bus.
type PublishFunc func(ctx context.Context, msg Message) error

// Dispatcher is the outbound side of the realtime layer. With a bus
// configured, messages go through it and come back to every instance's
// hub (this one included) via the forwarder; without one they are
// delivered to the local hub directly. A failed publish falls back to
// local delivery so the originating client still sees its own events.
type Dispatcher struct {
	hub     *Hub
	publish PublishFunc
}

func NewDispatcher(hub *Hub, publish PublishFunc) *Dispatcher {
	return &Dispatcher{hub: hub, publish: publish}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	if d == nil || d.hub == nil {
		return
	}
	if d.publish != nil {
		err := d.publish(ctx, msg)
		if err == nil {
			return
		}
		d.hub.logger.Warn("bus publish failed, delivering locally only",
			"channel", msg.Channel, "event", msg.Event, "error", err)
	}
	d.hub.Broadcast(msg)
}
