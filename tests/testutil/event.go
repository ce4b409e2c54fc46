// Package testutil provides shared fixtures for exercising the dealing
// backend's event plumbing in tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dealerdesk/backend/internal/domain/shared"
)

// MockEventHandler records every event delivered to it. Integration tests
// subscribe one to the bus to assert which lifecycle events a deal raised.
type MockEventHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

// NewMockEventHandler subscribes to the given event types; with none it
// acts as a catch-all.
func NewMockEventHandler(eventTypes ...string) *MockEventHandler {
	return &MockEventHandler{
		eventTypes: eventTypes,
	}
}

func (h *MockEventHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle records the event, then returns whatever error was configured
// via SetError. The event is recorded either way.
func (h *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

// Handled returns a copy of everything delivered so far.
func (h *MockEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func (h *MockEventHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// SetError makes subsequent Handle calls fail with err.
func (h *MockEventHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// Reset clears recorded events and any configured error.
func (h *MockEventHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = nil
	h.err = nil
}

// TestEvent is a bare deal lifecycle event for feeding the bus directly.
type TestEvent struct {
	shared.BaseDomainEvent
	Data string
}

// NewTestEvent builds an event of the given type scoped to one dealer.
func NewTestEvent(eventType string, dealerID uuid.UUID) *TestEvent {
	return NewTestEventWithID(uuid.New(), eventType, dealerID)
}

// NewTestEventWithID pins the event ID, for deduplication assertions.
func NewTestEventWithID(eventID uuid.UUID, eventType string, dealerID uuid.UUID) *TestEvent {
	return &TestEvent{
		BaseDomainEvent: shared.BaseDomainEvent{
			ID:            eventID,
			Type:          eventType,
			TenantIDValue: dealerID,
			Timestamp:     time.Now(),
			AggID:         uuid.New(),
			AggType:       "Deal",
		},
		Data: "deal-fixture",
	}
}

// WaitForCondition polls until condition returns true or timeout passes.
func WaitForCondition(t *testing.T, condition func() bool, timeout, interval time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

// WaitForEventCount waits until the handler has seen at least count events.
func WaitForEventCount(t *testing.T, handler *MockEventHandler, count int, timeout time.Duration) bool {
	t.Helper()

	return WaitForCondition(t, func() bool {
		return handler.HandledCount() >= count
	}, timeout, 10*time.Millisecond)
}
