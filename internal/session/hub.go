package session

import (
	"sync"
	"time"

	"github.com/stwalsh4118/demoreel/internal/playback"
)

// EventType names a notification published to subscribers
type EventType string

// Event types
const (
	EventStep     EventType = "step"
	EventProgress EventType = "progress"
	EventSegment  EventType = "segment"
	EventState    EventType = "state"
)

// String returns the string representation of the event type
func (t EventType) String() string {
	return string(t)
}

// StepPayload describes a fired step
type StepPayload struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	OffsetMillis int64  `json:"offset_ms"`
	Payload      any    `json:"payload,omitempty"`
}

// Event is one controller notification as seen by subscribers
type Event struct {
	Type         EventType       `json:"type"`
	Seq          uint64          `json:"seq"`
	SegmentIndex int             `json:"segment_index"`
	Fraction     float64         `json:"fraction,omitempty"`
	Step         *StepPayload    `json:"step,omitempty"`
	State        *playback.State `json:"state,omitempty"`
	At           time.Time       `json:"at"`
}

// Hub fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	buffer  int
	nextID  uint64
	seq     uint64
	dropped uint64
	closed  bool
}

// NewHub creates a hub whose subscribers buffer up to buffer events
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
	}
}

// Subscription is one subscriber's event stream
type Subscription struct {
	id   uint64
	hub  *Hub
	ch   chan Event
	once sync.Once
}

// Events returns the subscriber's channel. It is closed when the
// subscription or the hub is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrSessionClosed
	}

	h.nextID++
	sub := &Subscription{
		id:  h.nextID,
		hub: h,
		ch:  make(chan Event, h.buffer),
	}
	h.subs[sub.id] = sub
	return sub, nil
}

// Publish stamps e with the next sequence number and offers it to every
// subscriber
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.seq++
	e.Seq = h.seq
	for _, sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			h.dropped++
		}
	}
}

// Subscribers returns the number of open subscriptions
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for full buffers
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close closes every subscription and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	close(sub.ch)
	delete(h.subs, id)
}
