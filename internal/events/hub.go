// Package events fans committed registry changes out to live subscribers.
// Each published change gets the next store revision; list responses carry
// the same counter so clients can drop responses older than what they show.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
)

const defaultBuffer = 16

// Hub keeps the revision counter and the set of subscribers.
type Hub struct {
	mu          sync.RWMutex
	revision    uint64
	subscribers map[*Subscription]struct{}
	logger      *zap.Logger
	now         func() time.Time
}

// Subscription receives events until closed. A subscriber that falls behind
// loses events rather than stalling publishers; Dropped counts them.
type Subscription struct {
	C       <-chan models.ChangeEvent
	ch      chan models.ChangeEvent
	hub     *Hub
	once    sync.Once
	dropped uint64
}

// NewHub constructs a hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[*Subscription]struct{}),
		logger:      logger,
		now:         time.Now,
	}
}

// Revision returns the revision of the latest published change.
func (h *Hub) Revision() uint64 {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.revision
}

// Publish stamps a change with the next revision and delivers it.
func (h *Hub) Publish(entity models.EntityType, action models.ChangeAction, key string) models.ChangeEvent {
	if h == nil {
		return models.ChangeEvent{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.revision++
	event := models.ChangeEvent{
		Revision: h.revision,
		Entity:   entity,
		Action:   action,
		Key:      key,
		At:       h.now().UTC(),
	}
	for sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			sub.dropped++
			h.logger.Warn("event subscriber lagging, event dropped", zap.Uint64("revision", event.Revision))
		}
	}
	return event
}

// Subscribe registers a new subscriber with the given buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan models.ChangeEvent, buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close unregisters the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subscribers, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Dropped reports how many events were not delivered to this subscriber.
func (s *Subscription) Dropped() uint64 {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.dropped
}
