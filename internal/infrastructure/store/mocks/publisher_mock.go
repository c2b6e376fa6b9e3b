package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
)

// PublishCall records parameters passed to Publish
type PublishCall struct {
	Key   string
	Event any
}

// MockPublisher records published events
type MockPublisher struct {
	mu sync.Mutex

	PublishCalls []PublishCall
	PublishErr   error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{PublishCalls: make([]PublishCall, 0)}
}

func (m *MockPublisher) Publish(_ context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCalls = append(m.PublishCalls, PublishCall{Key: key, Event: event})
	return m.PublishErr
}

// EventTypes returns the event types of the recorded cart events, in order
func (m *MockPublisher) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]string, 0, len(m.PublishCalls))
	for _, c := range m.PublishCalls {
		if ev, ok := c.Event.(cart.Event); ok {
			types = append(types, ev.EventType)
		}
	}
	return types
}
