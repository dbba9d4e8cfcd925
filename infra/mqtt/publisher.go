package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kilianp07/shopfloor/core/notify"
)

// Message is one payload recorded by MockPublisher.
type Message struct {
	Topic   string
	Payload []byte
}

// MockPublisher records published messages. It is used in tests and as the
// publisher when no broker is configured and recording is wanted.
type MockPublisher struct {
	Messages []Message
	// FailTopics makes Publish fail for topics with one of these prefixes.
	FailTopics []string
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the message or returns an error if configured to fail.
func (m *MockPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, prefix := range m.FailTopics {
		if strings.HasPrefix(topic, prefix) {
			return fmt.Errorf("publish to %s failed", topic)
		}
	}
	m.Messages = append(m.Messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockPublisher) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Messages...)
}

var _ notify.Publisher = (*MockPublisher)(nil)
