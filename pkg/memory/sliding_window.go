package memory

import (
	"context"
	"sync"

	"github.com/harun/turnkit/internal/observability"
	"github.com/harun/turnkit/pkg/chat"
)

// SlidingWindow keeps the most recent messages in process memory
type SlidingWindow struct {
	mu           sync.RWMutex
	window       int
	strategy     TrimStrategy
	messages     []chat.ChatMessage
	needsSummary bool
}

// NewSlidingWindow creates a window that drops the oldest message on overflow.
// It panics when window is not positive.
func NewSlidingWindow(window int) *SlidingWindow {
	return NewSlidingWindowWithStrategy(window, TrimDrop)
}

// NewSlidingWindowWithStrategy creates a window with an explicit overflow strategy
func NewSlidingWindowWithStrategy(window int, strategy TrimStrategy) *SlidingWindow {
	if window <= 0 {
		panic("memory: window size must be greater than 0")
	}
	return &SlidingWindow{
		window:   window,
		strategy: strategy,
		messages: make([]chat.ChatMessage, 0, window),
	}
}

// Window returns the configured capacity
func (m *SlidingWindow) Window() int { return m.window }

// Strategy returns the overflow strategy
func (m *SlidingWindow) Strategy() TrimStrategy { return m.strategy }

func (m *SlidingWindow) Remember(ctx context.Context, msg chat.ChatMessage) error {
	m.mu.Lock()
	if len(m.messages) >= m.window {
		switch m.strategy {
		case TrimSummarize:
			m.needsSummary = true
		default:
			m.messages[0] = chat.ChatMessage{}
			m.messages = m.messages[1:]
		}
	}
	m.messages = append(m.messages, msg.Clone())
	size := len(m.messages)
	m.mu.Unlock()

	observability.SetMemoryMessages(string(TypeSlidingWindow), size)
	return nil
}

func (m *SlidingWindow) Recall(ctx context.Context, query string, limit int) ([]chat.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(m.messages) {
		start = len(m.messages) - limit
	}
	return chat.CloneMessages(m.messages[start:]), nil
}

func (m *SlidingWindow) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.messages = make([]chat.ChatMessage, 0, m.window)
	m.mu.Unlock()

	observability.SetMemoryMessages(string(TypeSlidingWindow), 0)
	return nil
}

func (m *SlidingWindow) Type() Type { return TypeSlidingWindow }

func (m *SlidingWindow) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

func (m *SlidingWindow) NeedsSummary() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.needsSummary
}

func (m *SlidingWindow) MarkForSummary() {
	m.mu.Lock()
	m.needsSummary = true
	m.mu.Unlock()
}

func (m *SlidingWindow) ReplaceWithSummary(ctx context.Context, summary string) error {
	m.mu.Lock()
	m.messages = append(make([]chat.ChatMessage, 0, m.window), summaryMessage(summary))
	m.needsSummary = false
	m.mu.Unlock()

	observability.SetMemoryMessages(string(TypeSlidingWindow), 1)
	return nil
}
