// Package notify fans change events out to live subscribers. The subscriber
// set is lock-guarded and broadcasts snapshot-then-iterate, so concurrent
// subscribe/unsubscribe during an in-flight broadcast is race-free.
package notify

import (
	"sync"
	"time"

	"drivemap/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types emitted after registry mutations. The wire values predate
// this service and are load-bearing for existing consumers.
const (
	EventNewHardDrive = "new_hard_drive"
	EventStatusUpdate = "status_update"
)

// subscriptionBufferSize is the per-subscriber event buffer. A subscriber
// that falls this far behind is disconnected rather than allowed to block
// the broadcaster.
const subscriptionBufferSize = 256

// Event is the payload delivered to every subscriber
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription is a live subscriber handle. Events arrives on C until the
// subscription is unsubscribed or dropped for falling behind; C is closed
// in either case.
type Subscription struct {
	ID string

	events    chan Event
	closeOnce sync.Once
}

// C returns the subscriber's event channel
func (s *Subscription) C() <-chan Event {
	return s.events
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
}

// Hub maintains the set of live subscribers and broadcasts change events.
// Delivery is best-effort per subscriber: a full buffer disconnects that
// subscriber and never aborts delivery to the rest, and never surfaces an
// error to the broadcasting writer.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	closed      bool
	logger      *zap.SugaredLogger
}

// NewHub creates an empty broadcast hub
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscription),
		logger:      logger,
	}
}

// Subscribe registers a new live subscriber. No payload is delivered until
// the next broadcast after registration.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		ID:     uuid.New().String(),
		events: make(chan Event, subscriptionBufferSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.close()
		return sub
	}
	h.subscribers[sub.ID] = sub
	total := len(h.subscribers)
	h.mu.Unlock()

	metrics.SubscribersConnected.Set(float64(total))
	h.logger.Debugw("Subscriber registered", "subscription_id", sub.ID, "total", total)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Unsubscribing a
// handle that was already removed is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	// The channel is closed while the write lock is held: broadcasts send
	// under the read lock, so a send can never race the close.
	h.mu.Lock()
	_, present := h.subscribers[sub.ID]
	if present {
		delete(h.subscribers, sub.ID)
	}
	sub.close()
	total := len(h.subscribers)
	h.mu.Unlock()

	if present {
		metrics.SubscribersConnected.Set(float64(total))
		h.logger.Debugw("Subscriber unregistered", "subscription_id", sub.ID, "total", total)
	}
}

// Broadcast delivers an event to every currently connected subscriber. The
// call returns once a send has been attempted to each subscriber that was
// connected when the broadcast started.
func (h *Hub) Broadcast(eventType string, data any) {
	event := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	// Sends happen under the read lock and are non-blocking, so the lock is
	// held only briefly and never races an Unsubscribe close.
	h.mu.RLock()
	var dropped []*Subscription
	for _, sub := range h.subscribers {
		select {
		case sub.events <- event:
		default:
			// Buffer full: the subscriber is too slow to keep up
			dropped = append(dropped, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range dropped {
		h.logger.Warnw("Dropping slow subscriber", "subscription_id", sub.ID)
		h.Unsubscribe(sub)
	}

	metrics.EventsBroadcast.WithLabelValues(eventType).Inc()
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber and rejects future subscriptions
func (h *Hub) Close() {
	h.mu.Lock()
	for _, sub := range h.subscribers {
		sub.close()
	}
	h.subscribers = make(map[string]*Subscription)
	h.closed = true
	h.mu.Unlock()

	metrics.SubscribersConnected.Set(0)
	h.logger.Info("Broadcast hub closed")
}
