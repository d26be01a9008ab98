// Package gateway pushes room events to WebSocket clients and accepts room
// actions over the same connection.
package gateway

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/placepick/go/internal/auth"
	"github.com/rs/zerolog/log"
)

// RoomApp is everything the gateway needs from the room app.
type RoomApp interface {
	RoomActions
	StateProvider
}

// Service is the realtime gateway: WebSocket connections, event broadcast
// and the HTTP state endpoints.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the gateway service
type Config struct {
	Connection   ConnectionConfig
	FrameTimeout time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		Connection:   DefaultConnectionConfig(),
		FrameTimeout: 15 * time.Second,
	}
}

// NewService wires the gateway around a connection manager that the room
// sessions already publish to. ctx bounds every client action.
func NewService(ctx context.Context, cm *ConnectionManager, app RoomApp, issuer *auth.Issuer, cfg Config) *Service {
	cm.SetDispatcher(NewDispatcher(ctx, app, cfg.FrameTimeout))
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, issuer),
		stateHandler:      NewStateHandler(app),
	}
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.connectionManager.Start(ctx)
	log.Info().Msg("room gateway stopped")
}

// RegisterRoutes registers the WebSocket and state routes
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/ws", s.wsHandler.HandleRoomConnection)
	r.Get("/ws/stats", s.wsHandler.HandleConnectionStats)
	r.Route("/api/rooms/{id}", func(r chi.Router) {
		r.Get("/state", s.stateHandler.HandleGetRoomState)
		r.Get("/results", s.stateHandler.HandleGetResults)
	})
	log.Info().Msg("room gateway routes registered")
}

// Stats returns connection statistics.
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}

// Done is closed once Start has returned and every connection is closed.
func (s *Service) Done() <-chan struct{} {
	return s.connectionManager.Done()
}
