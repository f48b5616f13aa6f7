package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/harun/turnkit/internal/config"
	"github.com/harun/turnkit/internal/observability"
	"github.com/harun/turnkit/pkg/agent"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/event"
	"github.com/harun/turnkit/pkg/event/stream"
	"github.com/harun/turnkit/pkg/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tasks and events over HTTP",
	Long: `Serve runs an HTTP server:

  POST   /tasks           run {"prompt": "...", "session_id": "..."} and return the result
  GET    /sessions        list open sessions
  DELETE /sessions/{id}   close a session
  GET    /events          stream every agent event over a WebSocket
  GET    /metrics         Prometheus metrics
  GET    /healthz         liveness

The agent section of the config file is reloaded when the file changes.
New sessions use the reloaded agent.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// sessionEntry is a session with the agent and memory bound to it
type sessionEntry struct {
	session  *session.Session
	agent    *agent.Agent
	closeMem func() error
}

// server routes HTTP requests to sessions
type server struct {
	llm     chat.Provider
	manager *session.Manager
	broker  *event.Broker
	stream  *stream.Server
	logger  zerolog.Logger

	cfgMu sync.RWMutex
	cfg   *config.Config

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
}

type taskRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

type taskResponse struct {
	SessionID    string          `json:"session_id"`
	SubmissionID string          `json:"submission_id"`
	Result       agent.RunResult `json:"result"`
	Error        string          `json:"error,omitempty"`
}

func newServer(cfg *config.Config, llm chat.Provider, archive *session.Archive, logger zerolog.Logger) *server {
	broker := event.NewBroker(cfg.Events.Buffer)
	sink := event.Multi(broker, event.NewLogSink(logger.With().Str("component", "events").Logger()))

	return &server{
		llm: llm,
		manager: session.NewManager(session.ManagerConfig{
			Sink:    sink,
			Archive: archive,
			Logger:  logger,
		}),
		broker:   broker,
		stream:   stream.NewServer(stream.Config{Broker: broker, Logger: logger.With().Str("component", "stream").Logger()}),
		logger:   logger,
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*sessionEntry),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", s.handleTask)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.Handle("GET /events", s.stream)
	mux.Handle("GET /metrics", observability.MetricsHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHTTPJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": len(s.manager.Sessions()),
			"clients":  s.stream.ClientCount(),
		})
	})
	return mux
}

func (s *server) config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// reload swaps in the agent section of cfg
func (s *server) reload(cfg *config.Config) {
	s.cfgMu.Lock()
	next := *s.cfg
	next.Agent = cfg.Agent
	s.cfg = &next
	s.cfgMu.Unlock()

	s.logger.Info().
		Str("agent", cfg.Agent.Name).
		Str("executor", cfg.Agent.Executor).
		Int("max_turns", cfg.Agent.MaxTurns).
		Msg("Agent config reloaded")
}

func (s *server) openSession() (*sessionEntry, error) {
	sess := s.manager.CreateSession()
	cfg := s.config()

	mem, closeMem, err := buildMemory(cfg.Memory, sess.ID().String(), s.logger)
	if err != nil {
		s.manager.RemoveSession(sess.ID())
		return nil, err
	}
	a, err := buildAgent(cfg.Agent, mem, s.logger)
	if err != nil {
		closeMem()
		s.manager.RemoveSession(sess.ID())
		return nil, err
	}
	sess.RegisterAgent(a)

	entry := &sessionEntry{session: sess, agent: a, closeMem: closeMem}
	s.mu.Lock()
	s.sessions[sess.ID()] = entry
	s.mu.Unlock()
	return entry, nil
}

func (s *server) lookup(id string) (*sessionEntry, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sid]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return entry, nil
}

func (s *server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeHTTPError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Prompt == "" {
		writeHTTPError(w, http.StatusBadRequest, fmt.Errorf("prompt is required"))
		return
	}

	var entry *sessionEntry
	var err error
	if req.SessionID == "" {
		entry, err = s.openSession()
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, err)
			return
		}
	} else if entry, err = s.lookup(req.SessionID); err != nil {
		writeHTTPError(w, http.StatusNotFound, err)
		return
	}

	task := agent.NewTask(req.Prompt)
	entry.session.AddTask(task)

	result, err := entry.session.RunTask(r.Context(), task, entry.agent.ID(), s.llm)
	resp := taskResponse{
		SessionID:    entry.session.ID().String(),
		SubmissionID: task.SubmissionID.String(),
		Result:       result,
	}

	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusBadGateway
		var outErr *agent.OutputError
		if errors.As(err, &outErr) {
			status = http.StatusUnprocessableEntity
		}
	}
	writeHTTPJSON(w, status, resp)
}

func (s *server) handleSessions(w http.ResponseWriter, r *http.Request) {
	type sessionInfo struct {
		ID      string `json:"id"`
		Agent   string `json:"agent"`
		Pending int    `json:"pending"`
	}

	s.mu.Lock()
	infos := make([]sessionInfo, 0, len(s.sessions))
	for _, id := range s.manager.Sessions() {
		entry, ok := s.sessions[id]
		if !ok {
			continue
		}
		infos = append(infos, sessionInfo{
			ID:      id.String(),
			Agent:   entry.agent.Name(),
			Pending: len(entry.session.Pending()),
		})
	}
	s.mu.Unlock()

	writeHTTPJSON(w, http.StatusOK, infos)
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	entry, err := s.lookup(r.PathValue("id"))
	if err != nil {
		writeHTTPError(w, http.StatusNotFound, err)
		return
	}
	s.closeSession(entry)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) closeSession(entry *sessionEntry) {
	id := entry.session.ID()
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.manager.RemoveSession(id)
	if err := entry.closeMem(); err != nil {
		s.logger.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to close session memory")
	}
}

// Close shuts down sessions, the queue and the broker
func (s *server) Close() error {
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		s.closeSession(e)
	}
	err := s.manager.Close()
	s.broker.Shutdown()
	return err
}

func writeHTTPJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeHTTPError(w http.ResponseWriter, status int, err error) {
	writeHTTPJSON(w, status, map[string]string{"error": err.Error()})
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	llm, err := buildProvider(rt.cfg.Provider, rt.logger)
	if err != nil {
		return err
	}
	archive, err := openArchive(rt.cfg.Session, rt.logger)
	if err != nil {
		return err
	}

	srv := newServer(rt.cfg, llm, archive, rt.logger)
	defer srv.Close()

	configPath, err := config.NewLoader(cfgFile).Path()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(configPath); statErr == nil {
		watcher, err := config.NewWatcher(config.WatcherConfig{
			Path:     configPath,
			OnChange: srv.reload,
			Logger:   rt.logger,
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(rt.cfg.Server.Host, strconv.Itoa(rt.cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info().Str("addr", addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rt.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
