package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a Clock that only advances when Advance is called. Expired
// callbacks run synchronously on the goroutine calling Advance, in order of
// due time and, for equal due times, in the order they were armed.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers manualHeap
}

// NewManual creates a manual clock reading start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the clock's current reading
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc arms fn to run once the clock has moved d past its current
// reading. Zero and negative durations run on the next Advance or Flush.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{
		clock: m,
		when:  m.now.Add(d),
		seq:   m.seq,
		fn:    fn,
		index: -1,
	}
	heap.Push(&m.timers, t)
	return t
}

// Advance moves the clock forward by d, running every callback that falls
// due on the way. Callbacks armed by other callbacks run in the same call if
// they fall due before the target time.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if len(m.timers) == 0 || m.timers[0].when.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		t := heap.Pop(&m.timers).(*manualTimer)
		if t.when.After(m.now) {
			m.now = t.when
		}
		fn := t.fn
		m.mu.Unlock()

		fn()
	}
}

// Flush runs callbacks that are already due without moving the clock
func (m *Manual) Flush() {
	m.Advance(0)
}

// Pending returns the number of armed callbacks
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// NextDue returns how long until the earliest armed callback, and false when
// nothing is armed
func (m *Manual) NextDue() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return 0, false
	}
	return m.timers[0].when.Sub(m.now), true
}

type manualTimer struct {
	clock *Manual
	when  time.Time
	seq   uint64
	fn    func()
	index int
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.clock.timers, t.index)
	return true
}

// manualHeap orders timers by due time then arming order
type manualHeap []*manualTimer

func (h manualHeap) Len() int { return len(h) }

func (h manualHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h manualHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *manualHeap) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *manualHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
