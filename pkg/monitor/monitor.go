// Package monitor fans out live call events to observers.
package monitor

import (
	"sync"
	"time"
)

// Event types published by the turn controller.
const (
	CallStarted    = "call.started"
	CallEnded      = "call.ended"
	TurnCaller     = "turn.caller"
	TurnAssistant  = "turn.assistant"
	TurnRepeat     = "turn.repeat"
	TurnSuperseded = "turn.superseded"
	TurnError      = "turn.error"
)

const defaultBufferSize = 64

// Event is a single observation. Text carries transcript or reply text;
// Detail carries a short machine-oriented note such as an error kind.
type Event struct {
	Type       string    `json:"type"`
	CallID     string    `json:"call_id"`
	Text       string    `json:"text,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Time       time.Time `json:"time"`
}

// Publisher accepts events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

var _ Publisher = (*Hub)(nil)

// Hub broadcasts events to subscribers. A subscriber that falls behind
// loses events rather than slowing the publisher.
type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	bufSize int
	now     func() time.Time
}

// NewHub creates a Hub whose subscribers buffer up to bufSize events.
// bufSize <= 0 selects a default.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return &Hub{subs: make(map[*Subscription]struct{}), bufSize: bufSize, now: time.Now}
}

// Subscription receives events until Close is called.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	hub     *Hub
	dropped uint64
	once    sync.Once
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.bufSize)
	s := &Subscription{C: ch, ch: ch, hub: h}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Dropped reports how many events were lost because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.dropped
}

// Publish implements [Publisher].
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = h.now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- e:
		default:
			s.dropped++
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
