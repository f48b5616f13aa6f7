// Package stream pushes agent events to WebSocket clients.
package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/turnkit/pkg/event"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const writeTimeout = 5 * time.Second

// Server upgrades HTTP requests and streams broker events as JSON frames
type Server struct {
	broker   *event.Broker
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*websocket.Conn
}

// Config holds stream server configuration
type Config struct {
	Broker      *event.Broker
	CheckOrigin func(r *http.Request) bool
	Logger      zerolog.Logger
}

// NewServer creates a stream server over cfg.Broker
func NewServer(cfg Config) *Server {
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Server{
		broker:   cfg.Broker,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   cfg.Logger,
		clients:  make(map[string]*websocket.Conn),
	}
}

// ServeHTTP handles one WebSocket client until it disconnects
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	s.add(clientID, conn)

	s.logger.Info().
		Str("client_id", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Event stream client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		conn.Close()
		s.remove(clientID)
		s.logger.Info().Str("client_id", clientID).Msg("Event stream client disconnected")
	}()

	events := s.broker.Subscribe(ctx)
	go s.readLoop(clientID, conn, cancel)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
					time.Now().Add(writeTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Warn().Err(err).Str("client_id", clientID).Msg("Failed to write event")
				return
			}
		}
	}
}

// readLoop discards client frames and cancels the stream when the peer goes away
func (s *Server) readLoop(clientID string, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("client_id", clientID).Msg("WebSocket error")
			}
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) add(id string, conn *websocket.Conn) {
	s.mu.Lock()
	s.clients[id] = conn
	s.mu.Unlock()
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}
