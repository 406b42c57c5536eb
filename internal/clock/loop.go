package clock

import (
	"context"
	"errors"
	"sync"

	"github.com/stwalsh4118/demoreel/internal/logger"
)

// ErrLoopStopped is returned when work is submitted to a stopped loop
var ErrLoopStopped = errors.New("event loop has been stopped")

// Loop runs submitted functions one at a time on a single goroutine. The
// playback controller is not safe for concurrent use; everything that
// touches it, timer expirations and external commands alike, goes through
// its loop.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	stopped bool
	running bool
}

// NewLoop creates a loop. Call Run to start processing.
func NewLoop() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Post enqueues fn without blocking. It reports false if the loop has been
// stopped, in which case fn is dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for its result. It must not be called
// from the loop goroutine itself.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !l.Post(func() { result <- fn() }) {
		return ErrLoopStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The loop may have run fn just before exiting
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopStopped
		}
	}
}

// Run processes queued functions until ctx is done or Stop is called.
// Functions still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	if l.running || l.stopped {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	defer close(l.done)
	defer l.markStopped()

	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}
			l.invoke(fn)
		}

		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-l.wake:
		}
	}
}

// Stop asks the loop to exit and waits for Run to return. It must not be
// called from the loop goroutine.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	running := l.running
	l.mu.Unlock()

	close(l.stopCh)
	if !running {
		// Run never started, so nobody else will close done
		close(l.done)
		return
	}
	<-l.done
}

// Done is closed once Run has returned
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) markStopped() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
}

// invoke runs fn, keeping the loop alive if it panics
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error().
				Interface("panic", r).
				Msg("Recovered panic in event loop task")
		}
	}()
	fn()
}
