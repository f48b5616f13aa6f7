package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harun/turnkit/internal/tracing"
	"github.com/harun/turnkit/pkg/agent"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Record is one archived terminal task
type Record struct {
	SessionID  string        `json:"session_id"`
	AgentID    string        `json:"agent_id,omitempty"`
	Task       agent.Task    `json:"task"`
	Output     *agent.Output `json:"output,omitempty"`
	ArchivedAt time.Time     `json:"archived_at"`
}

// Archive stores terminal tasks as one JSONL file per session
type Archive struct {
	dir        string
	logger     zerolog.Logger
	writeLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
}

// OpenArchive creates dir when missing. An empty dir means $HOME/.turnkit/sessions.
func OpenArchive(dir string, logger zerolog.Logger) (*Archive, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".turnkit", "sessions")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	logger.Debug().Str("dir", dir).Msg("Session archive opened")

	return &Archive{
		dir:        dir,
		logger:     logger,
		writeLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the archive directory
func (a *Archive) Dir() string {
	return a.dir
}

func validateSessionKey(key string) error {
	if key == "" {
		return fmt.Errorf("session key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("session key cannot contain '..'")
	}
	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("session key cannot contain path separators")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("session key cannot contain null bytes")
	}
	return nil
}

func (a *Archive) path(key string) string {
	return filepath.Join(a.dir, key+".jsonl")
}

func (a *Archive) writeLock(key string) *sync.Mutex {
	a.locksMu.Lock()
	defer a.locksMu.Unlock()

	if lock, ok := a.writeLocks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	a.writeLocks[key] = lock
	return lock
}

// Append writes rec as one line of its session file
func (a *Archive) Append(ctx context.Context, rec Record) error {
	ctx, span := tracing.StartSpan(ctx, "turnkit.session", "session.archive",
		attribute.String("session_id", rec.SessionID),
	)
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := validateSessionKey(rec.SessionID); err != nil {
		return fail(err)
	}
	if !rec.Task.Completed {
		return fail(fmt.Errorf("task %s is not terminal", rec.Task.SubmissionID))
	}
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal record: %w", err))
	}

	lock := a.writeLock(rec.SessionID)
	lock.Lock()
	defer lock.Unlock()

	file, err := os.OpenFile(a.path(rec.SessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fail(fmt.Errorf("failed to open archive file: %w", err))
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fail(fmt.Errorf("failed to write record: %w", err))
	}
	if err := file.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync file: %w", err))
	}

	logger := tracing.LoggerFromContext(ctx, a.logger)
	logger.Debug().
		Str("session_id", rec.SessionID).
		Str("submission_id", rec.Task.SubmissionID.String()).
		Msg("Task archived")

	return nil
}

// Load reads every record of a session. Corrupt lines are skipped.
func (a *Archive) Load(ctx context.Context, sessionID string) ([]Record, error) {
	if err := validateSessionKey(sessionID); err != nil {
		return nil, err
	}
	logger := tracing.LoggerFromContext(ctx, a.logger).With().Str("session_id", sessionID).Logger()

	file, err := os.Open(a.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	defer file.Close()

	records := []Record{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse line, skipping")
			continue
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archive file: %w", err)
	}
	return records, nil
}

// List returns the ids of archived sessions
func (a *Archive) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	sessions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, ".jsonl"))
	}
	return sessions, nil
}

// Delete removes a session file
func (a *Archive) Delete(sessionID string) error {
	if err := validateSessionKey(sessionID); err != nil {
		return err
	}

	lock := a.writeLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(a.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete archive file: %w", err)
	}

	a.locksMu.Lock()
	delete(a.writeLocks, sessionID)
	a.locksMu.Unlock()

	a.logger.Info().Str("session_id", sessionID).Msg("Session archive deleted")
	return nil
}

// Prune deletes session files not modified within maxAge and returns how many were removed
func (a *Archive) Prune(maxAge time.Duration) (int, error) {
	sessions, err := a.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, id := range sessions {
		info, err := os.Stat(a.path(id))
		if err != nil {
			a.logger.Warn().Str("session_id", id).Err(err).Msg("Failed to stat archive file")
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := a.Delete(id); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		a.logger.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("Pruned session archives")
	}
	return removed, nil
}
