package memory

import (
	"context"
	"sync"

	"github.com/harun/turnkit/pkg/chat"
)

// Reactive wraps a Provider and notifies subscribers of remembered messages.
// Delivery is best effort: a full subscriber channel misses the event.
type Reactive struct {
	Provider

	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
}

type subscription struct {
	cond Condition
	ch   chan MessageEvent
}

// NewReactive wraps inner
func NewReactive(inner Provider) *Reactive {
	return &Reactive{
		Provider: inner,
		subs:     make(map[int]*subscription),
	}
}

// Subscribe registers a subscriber. The returned func unsubscribes and closes the channel.
func (r *Reactive) Subscribe(cond Condition, buffer int) (<-chan MessageEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	sub := &subscription{cond: cond, ch: make(chan MessageEvent, buffer)}
	r.subs[id] = sub
	r.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Remember stores msg in the wrapped provider and then notifies subscribers
func (r *Reactive) Remember(ctx context.Context, msg chat.ChatMessage) error {
	if err := r.Provider.Remember(ctx, msg); err != nil {
		return err
	}

	ev := MessageEvent{Role: string(msg.Role), Message: msg.Clone()}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.subs {
		if !sub.cond.Matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
	return nil
}
