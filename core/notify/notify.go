// Package notify forwards committed scheduling events to the shop floor.
//
// A Forwarder subscribes to the event bus and publishes plan commits and
// urgent insertions as JSON messages through a Publisher, typically the MQTT
// client in infra/mqtt. Run state and adjustment events stay in process.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilianp07/shopfloor/core/events"
	"github.com/kilianp07/shopfloor/core/logger"
	"github.com/kilianp07/shopfloor/internal/eventbus"
)

// DefaultTopicPrefix roots every topic when none is configured.
const DefaultTopicPrefix = "shopfloor"

// Publisher delivers one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, topic string, payload []byte) error

func (f PublisherFunc) Publish(ctx context.Context, topic string, payload []byte) error {
	return f(ctx, topic, payload)
}

// Message is the JSON envelope sent for each forwarded event.
type Message struct {
	Type   string       `json:"type"`
	PlanID string       `json:"plan_id"`
	Event  events.Event `json:"event"`
}

// Topic returns the topic and message type for ev. Events that are not
// forwarded report ok=false.
func Topic(prefix string, ev events.Event) (topic, kind string, ok bool) {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	prefix = strings.TrimSuffix(prefix, "/")
	switch ev.(type) {
	case events.PlanCommittedEvent:
		return fmt.Sprintf("%s/plans/%s", prefix, ev.Plan()), "plan_committed", true
	case events.UrgentInsertedEvent:
		return fmt.Sprintf("%s/urgent/%s", prefix, ev.Plan()), "urgent_inserted", true
	}
	return "", "", false
}

// Forwarder publishes bus events through a Publisher.
type Forwarder struct {
	pub    Publisher
	prefix string
	log    logger.Logger
}

// NewForwarder returns a forwarder publishing under prefix.
func NewForwarder(pub Publisher, prefix string, log logger.Logger) *Forwarder {
	return &Forwarder{pub: pub, prefix: prefix, log: logger.OrNop(log)}
}

// Forward publishes ev when it is a forwarded event type.
func (f *Forwarder) Forward(ctx context.Context, ev events.Event) error {
	topic, kind, ok := Topic(f.prefix, ev)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(Message{Type: kind, PlanID: ev.Plan(), Event: ev})
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := f.pub.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	f.log.Debugf("forwarded %s to %s", kind, topic)
	return nil
}

// Start forwards events from bus until ctx is canceled or the bus closes.
// Publish failures are logged and do not stop forwarding. The returned
// channel is closed when the forwarder exits.
func (f *Forwarder) Start(ctx context.Context, bus *eventbus.Bus[events.Event]) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := f.Forward(ctx, ev); err != nil {
					f.log.Errorf("notification for plan %s failed: %v", ev.Plan(), err)
				}
			}
		}
	}()
	return done
}
