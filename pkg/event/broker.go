package event

import (
	"context"
	"sync"
)

const defaultBrokerBuffer = 64

// Broker fans events out to subscribers without blocking publishers
type Broker struct {
	mu        sync.RWMutex
	subs      map[chan Event]struct{}
	done      chan struct{}
	bufferCap int
}

// NewBroker creates a broker whose subscribers buffer up to buffer events
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBrokerBuffer
	}
	return &Broker{
		subs:      make(map[chan Event]struct{}),
		done:      make(chan struct{}),
		bufferCap: buffer,
	}
}

// Subscribe registers for future events. The channel closes when ctx is done
// or the broker shuts down.
func (b *Broker) Subscribe(ctx context.Context) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event)
		close(ch)
		return ch
	default:
	}

	ch := make(chan Event, b.bufferCap)
	b.subs[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		if _, ok := b.subs[ch]; !ok {
			return
		}
		delete(b.subs, ch)
		close(ch)
	}()

	return ch
}

// Send publishes e to every subscriber that has room
func (b *Broker) Send(e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Shutdown closes the broker and every subscriber channel
func (b *Broker) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}

	for ch := range b.subs {
		close(ch)
	}
	clear(b.subs)
}
