package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/turnkit/internal/observability"
	"github.com/harun/turnkit/pkg/chat"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation TEXT NOT NULL,
	role TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation, id);
`

// SQLiteConfig configures a SQLite-backed memory
type SQLiteConfig struct {
	Path         string
	Conversation string       // rows are scoped to this key; defaults to "default"
	Window       int          // 0 keeps every message
	Strategy     TrimStrategy // applies when Window > 0
	Logger       zerolog.Logger
}

// SQLite persists conversation history in a SQLite database
type SQLite struct {
	db           *sql.DB
	conversation string
	window       int
	strategy     TrimStrategy
	logger       zerolog.Logger

	mu           sync.Mutex
	needsSummary bool
}

// OpenSQLite opens or creates the database at cfg.Path
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("window must not be negative")
	}
	if cfg.Conversation == "" {
		cfg.Conversation = "default"
	}
	if cfg.Strategy == "" {
		cfg.Strategy = TrimDrop
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create memory directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create memory schema: %w", err)
	}

	m := &SQLite{
		db:           db,
		conversation: cfg.Conversation,
		window:       cfg.Window,
		strategy:     cfg.Strategy,
		logger:       cfg.Logger,
	}

	if m.window > 0 && m.strategy == TrimSummarize && m.Size() > m.window {
		m.needsSummary = true
	}

	return m, nil
}

// Close closes the database
func (m *SQLite) Close() error {
	return m.db.Close()
}

func (m *SQLite) Remember(ctx context.Context, msg chat.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if m.window > 0 {
		var count int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM messages WHERE conversation = ?", m.conversation,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to count messages: %w", err)
		}

		if count >= m.window {
			switch m.strategy {
			case TrimSummarize:
				m.needsSummary = true
			default:
				if _, err := tx.ExecContext(ctx, `
					DELETE FROM messages WHERE id IN (
						SELECT id FROM messages WHERE conversation = ? ORDER BY id ASC LIMIT ?
					)`, m.conversation, count-m.window+1); err != nil {
					return fmt.Errorf("failed to evict messages: %w", err)
				}
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages (conversation, role, kind, content, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		m.conversation, string(msg.Role), string(msg.Kind), msg.Content, string(payload), time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}

	observability.SetMemoryMessages(string(TypeSQLite), m.sizeLocked(ctx))
	return nil
}

func (m *SQLite) Recall(ctx context.Context, query string, limit int) ([]chat.ChatMessage, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT payload FROM (
			SELECT id, payload FROM messages WHERE conversation = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, m.conversation, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.ChatMessage
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		var msg chat.ChatMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (m *SQLite) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.ExecContext(ctx, "DELETE FROM messages WHERE conversation = ?", m.conversation); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	observability.SetMemoryMessages(string(TypeSQLite), 0)
	return nil
}

func (m *SQLite) Type() Type { return TypeSQLite }

// Size returns the stored message count, or 0 when the count query fails
func (m *SQLite) Size() int {
	return m.sizeLocked(context.Background())
}

func (m *SQLite) sizeLocked(ctx context.Context) int {
	var count int
	if err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation = ?", m.conversation,
	).Scan(&count); err != nil {
		m.logger.Error().Err(err).Str("conversation", m.conversation).Msg("Failed to count memory messages")
		return 0
	}
	return count
}

func (m *SQLite) NeedsSummary() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsSummary
}

func (m *SQLite) MarkForSummary() {
	m.mu.Lock()
	m.needsSummary = true
	m.mu.Unlock()
}

func (m *SQLite) ReplaceWithSummary(ctx context.Context, summary string) error {
	msg := summaryMessage(summary)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation = ?", m.conversation); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages (conversation, role, kind, content, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		m.conversation, string(msg.Role), string(msg.Kind), msg.Content, string(payload), time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit summary: %w", err)
	}

	m.needsSummary = false
	observability.SetMemoryMessages(string(TypeSQLite), 1)
	return nil
}
