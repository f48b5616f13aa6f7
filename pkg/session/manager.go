package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/harun/turnkit/internal/observability"
	"github.com/harun/turnkit/pkg/commandqueue"
	"github.com/harun/turnkit/pkg/event"
	"github.com/rs/zerolog"
)

// ManagerConfig configures a Manager
type ManagerConfig struct {
	// Sink receives the events of every session. Defaults to event.Discard.
	Sink event.Sink
	// Queue serializes runs. A private queue is created when nil.
	Queue *commandqueue.CommandQueue
	// Archive stores terminal tasks when set
	Archive *Archive
	Logger  zerolog.Logger
}

// Manager creates sessions that share one event sink and one command queue
type Manager struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*Session
	sink      event.Sink
	queue     *commandqueue.CommandQueue
	ownsQueue bool
	archive   *Archive
	logger    zerolog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	observability.EnsureRegistered()

	m := &Manager{
		sessions: make(map[uuid.UUID]*Session),
		sink:     cfg.Sink,
		queue:    cfg.Queue,
		archive:  cfg.Archive,
		logger:   cfg.Logger,
	}
	if m.sink == nil {
		m.sink = event.Discard
	}
	if m.queue == nil {
		m.queue = commandqueue.New(cfg.Logger)
		m.ownsQueue = true
	}
	return m
}

// CreateSession registers a new empty session
func (m *Manager) CreateSession() *Session {
	s := newSession(m.sink, m.queue, m.archive, m.logger)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	count := len(m.sessions)
	m.mu.Unlock()

	observability.SetActiveSessions(count)
	m.logger.Info().Str("session_id", s.ID().String()).Msg("Session created")
	return s
}

// Session returns the session with id
func (m *Manager) Session(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the ids of all open sessions in string order
func (m *Manager) Sessions() []uuid.UUID {
	m.mu.RLock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// RemoveSession forgets a session and drops its queued runs
func (m *Manager) RemoveSession(id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.queue.ClearLane(s.lane())
	observability.SetActiveSessions(count)
	m.logger.Info().Str("session_id", id.String()).Msg("Session removed")
	return true
}

// Close stops the queue when the manager created it
func (m *Manager) Close() error {
	if m.ownsQueue {
		return m.queue.Close()
	}
	return nil
}
