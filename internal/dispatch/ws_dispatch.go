package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/campus-carpool/internal/models"
)

var ErrNoSession = errors.New("no ws session")

// RideEvent is pushed to the other side of a ride whenever it changes.
type RideEvent struct {
	Type string      `json:"type"` // ride_requested, ride_accepted, ...
	Ride models.Ride `json:"ride"`
}

// Notifier delivers ride events to a connected user.
type Notifier interface {
	Notify(userID string, ev RideEvent) error
}

// WSSession represents a connected user session.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ev RideEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(ev)
}

// WSRegistry holds one session per user; a reconnect replaces the old one.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *zap.Logger
}

func NewWSRegistry(logger *zap.Logger) *WSRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSRegistry{sessions: make(map[string]*WSSession), logger: logger}
}

// Add registers conn for userID and drains it until the client goes away.
func (r *WSRegistry) Add(userID string, conn *websocket.Conn) {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	old := r.sessions[userID]
	r.sessions[userID] = s
	r.mu.Unlock()
	if old != nil {
		_ = old.conn.Close()
	}
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				r.remove(userID, s)
				_ = conn.Close()
				return
			}
		}
	}()
}

func (r *WSRegistry) remove(userID string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[userID] == s {
		delete(r.sessions, userID)
	}
}

func (r *WSRegistry) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

func (r *WSRegistry) Notify(userID string, ev RideEvent) error {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(ev); err != nil {
		r.logger.Warn("ws send error", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}
