package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashita-ai/sparkwatch/internal/model"
	"github.com/ashita-ai/sparkwatch/internal/monitor"
)

// SSE event names.
const (
	EventState  = "state"
	EventAlerts = "alerts"
)

// Broker fans monitor changes out to SSE subscribers. A state event carries
// the full state root; an alerts event carries the current alert list plus
// what was raised and cleared.
type Broker struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
}

// NewBroker creates a broker with no subscribers. Call Attach to feed it.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// alertsPayload is the data of an alerts SSE event.
type alertsPayload struct {
	Alerts  []model.Alert `json:"alerts"`
	Raised  []model.Alert `json:"raised"`
	Cleared []string      `json:"cleared"`
}

// Attach subscribes the broker to m and returns a function that detaches it.
func (b *Broker) Attach(m *monitor.Monitor) (detach func()) {
	return m.OnChange(b.publish)
}

// publish runs under the monitor's dispatch lock; broadcast never blocks.
func (b *Broker) publish(c monitor.Change) {
	if b.Len() == 0 {
		return
	}
	if c.StateChanged() {
		if event, err := stateEvent(c.State); err != nil {
			b.logger.Warn("broker: encode state", "error", err)
		} else {
			b.broadcast(event)
		}
	}
	if c.AlertsChanged() {
		if event, err := alertsEvent(c.Alerts, c.Raised, c.Cleared); err != nil {
			b.logger.Warn("broker: encode alerts", "error", err)
		} else {
			b.broadcast(event)
		}
	}
}

func stateEvent(state *model.AppState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return formatSSE(EventState, string(data)), nil
}

func alertsEvent(alerts []model.Alert, raised []model.Alert, cleared []string) ([]byte, error) {
	data, err := json.Marshal(alertsPayload{
		Alerts:  nonNil(alerts),
		Raised:  nonNil(raised),
		Cleared: nonNil(cleared),
	})
	if err != nil {
		return nil, err
	}
	return formatSSE(EventAlerts, string(data)), nil
}

// Subscribe returns a channel that receives SSE-formatted events.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// Len returns the number of connected subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// broadcast drops the event for subscribers whose buffer is full.
func (b *Broker) broadcast(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Debug("broker: subscriber buffer full, event dropped")
		}
	}
}

// formatSSE renders "event: <type>\ndata: <payload>\n\n".
func formatSSE(eventType, data string) []byte {
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
