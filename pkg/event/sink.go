package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/harun/turnkit/internal/observability"
)

var (
	// ErrDropped is returned when the channel buffer is full
	ErrDropped = errors.New("event dropped: channel full")
	// ErrClosed is returned after the channel has been closed
	ErrClosed = errors.New("event dropped: channel closed")
)

// Sink receives events. Send must not block.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }

type discard struct{}

func (discard) Send(Event) error { return nil }

// Discard drops every event
var Discard Sink = discard{}

// Channel is a bounded FIFO sink that drops instead of blocking
type Channel struct {
	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	dropped atomic.Uint64
}

// NewChannel creates a channel with the given buffer size
func NewChannel(buffer int) *Channel {
	if buffer < 0 {
		buffer = 0
	}
	return &Channel{ch: make(chan Event, buffer)}
}

// Send enqueues e or drops it when the buffer is full or the channel is closed
func (c *Channel) Send(e Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.dropped.Add(1)
		observability.RecordEventDropped("closed")
		return ErrClosed
	}

	select {
	case c.ch <- e:
		return nil
	default:
		c.dropped.Add(1)
		observability.RecordEventDropped("full")
		return ErrDropped
	}
}

// Events returns the receive side
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events were not delivered
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}

// Close stops accepting events and closes the receive side. It is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Multi sends every event to each sink and returns the first error
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) error {
		var first error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Send(e); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

// Forward drains src into dst until src closes or ctx is done
func Forward(ctx context.Context, src <-chan Event, dst Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-src:
			if !ok {
				return
			}
			_ = dst.Send(e)
		}
	}
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.RWMutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a snapshot of recorded events
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

// Reset clears recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
