package memory

import (
	"context"
	"fmt"

	"github.com/harun/turnkit/pkg/chat"
)

// Type identifies a memory implementation
type Type string

const (
	TypeSlidingWindow Type = "sliding_window"
	TypeSQLite        Type = "sqlite"
)

// TrimStrategy decides what happens when the window is full
type TrimStrategy string

const (
	// TrimDrop evicts the oldest message
	TrimDrop TrimStrategy = "drop"
	// TrimSummarize flags the memory for summarization and keeps the message
	TrimSummarize TrimStrategy = "summarize"
)

// ParseTrimStrategy converts a config value into a TrimStrategy
func ParseTrimStrategy(s string) (TrimStrategy, error) {
	switch TrimStrategy(s) {
	case "", TrimDrop:
		return TrimDrop, nil
	case TrimSummarize:
		return TrimSummarize, nil
	default:
		return "", fmt.Errorf("unknown trim strategy %q", s)
	}
}

// Provider is a conversation store
type Provider interface {
	Remember(ctx context.Context, msg chat.ChatMessage) error

	// Recall returns up to limit of the most recent messages, all of them when limit <= 0.
	// query is reserved for retrieval backends and may be ignored.
	Recall(ctx context.Context, query string, limit int) ([]chat.ChatMessage, error)

	Clear(ctx context.Context) error
	Type() Type
	Size() int

	NeedsSummary() bool
	MarkForSummary()

	// ReplaceWithSummary drops all history and stores summary as one assistant message
	ReplaceWithSummary(ctx context.Context, summary string) error
}

func summaryMessage(summary string) chat.ChatMessage {
	return chat.Text(chat.RoleAssistant, summary)
}
