// Package dispatch pushes ride offers to connected drivers over
// WebSocket. Drivers without a live session simply miss the push and
// discover pending rides by polling.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/taxi-backend/internal/models"
)

// RideOffer is the payload pushed to a driver when a ride needs one.
type RideOffer struct {
	RideID         string          `json:"rideId"`
	RideType       models.RideType `json:"rideType"`
	PickupLocation string          `json:"pickupLocation"`
	Destination    string          `json:"destination"`
	EstimatedFare  float64         `json:"estimatedFare,omitempty"`
}

// WSSession represents a connected driver session.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(offer RideOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(offer)
}

// WSRegistry holds driver sessions keyed by driver id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	log      *slog.Logger
}

func NewWSRegistry(log *slog.Logger) *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession), log: log}
}

// Add registers a session for the driver, replacing any previous one,
// and returns it so the caller can hand it back to Remove.
func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) *WSSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &WSSession{conn: conn}
	r.sessions[driverID] = s
	return s
}

// Remove drops the driver's session only if it is still the one given.
// A reconnect replaces the session, and the old connection's teardown
// must not evict the new one.
func (r *WSRegistry) Remove(driverID string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[driverID] == s {
		delete(r.sessions, driverID)
	}
}

// Offer sends the offer to one driver. Returns ErrNoSession when the
// driver is not connected.
func (r *WSRegistry) Offer(driverID string, offer RideOffer) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(offer); err != nil {
		r.log.Warn("ws send failed", "driver_id", driverID, "error", err)
		return err
	}
	return nil
}

// Broadcast offers the ride to every connected driver and reports how
// many sends succeeded.
func (r *WSRegistry) Broadcast(offer RideOffer) int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sent := 0
	for _, id := range ids {
		if err := r.Offer(id, offer); err == nil {
			sent++
		}
	}
	return sent
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }
