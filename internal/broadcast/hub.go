package broadcast

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

// Publisher is what services hold. Handing it in through constructors (no
// package-level broadcaster) lets tests intercept published events.
type Publisher interface {
	Publish(event entity.Event, topics ...string)
}

const subscriberBuffer = 32

// Subscriber is one terminal connection's view of the hub. Events arrive
// on C in publish order; a subscriber that stops draining is dropped.
type Subscriber struct {
	ch     chan entity.Event
	topics map[string]struct{}
	closed bool
}

func (s *Subscriber) C() <-chan entity.Event {
	return s.ch
}

// Hub fans domain events out to subscribers keyed by topic: per-lane topics
// for session and highlight events, global topics for inventory, waitlist
// and register summaries. Delivery is at-most-once and best-effort; a
// disconnected terminal re-synchronizes with a full-state fetch.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscriber]struct{}),
	}
}

func (h *Hub) Subscribe(topics ...string) *Subscriber {
	sub := &Subscriber{
		ch:     make(chan entity.Event, subscriberBuffer),
		topics: make(map[string]struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.attach(sub, topics)
	return sub
}

// Resubscribe atomically replaces the subscriber's topic set. Used when a
// terminal sends a new subscribe control message on an open connection.
func (h *Hub) Resubscribe(sub *Subscriber, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return
	}
	h.detach(sub)
	h.attach(sub, topics)
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return
	}
	h.detach(sub)
	sub.closed = true
	close(sub.ch)
}

// Publish delivers the event to every subscriber of the given topics. A
// subscriber appearing under several of the topics receives the event
// once. Full subscriber buffers are skipped rather than blocked on.
func (h *Hub) Publish(event entity.Event, topics ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Subscriber]struct{})
	for _, topic := range topics {
		for sub := range h.subs[topic] {
			if _, dup := seen[sub]; dup {
				continue
			}
			seen[sub] = struct{}{}

			select {
			case sub.ch <- event:
			default:
				logrus.WithFields(logrus.Fields{
					"topic": topic,
					"event": event.Type,
				}).Warn("Dropping event for slow subscriber")
			}
		}
	}
}

func (h *Hub) attach(sub *Subscriber, topics []string) {
	for _, topic := range topics {
		if h.subs[topic] == nil {
			h.subs[topic] = make(map[*Subscriber]struct{})
		}
		h.subs[topic][sub] = struct{}{}
		sub.topics[topic] = struct{}{}
	}
}

func (h *Hub) detach(sub *Subscriber) {
	for topic := range sub.topics {
		delete(h.subs[topic], sub)
		if len(h.subs[topic]) == 0 {
			delete(h.subs, topic)
		}
	}
	sub.topics = make(map[string]struct{})
}
