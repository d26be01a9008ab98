package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/placepick/go/internal/room/events"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections and fans room events out
// to the connections subscribed to each room.
type ConnectionManager struct {
	// roomID -> set of connections
	rooms map[uuid.UUID]map[*Connection]bool
	mu    sync.RWMutex

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	dispatcher  *Dispatcher
	broadcastCh chan *events.RoomEvent
	done        chan struct{}

	// Rooms whose events no longer fit the queue. Each keeps only its latest
	// room-update until the queue has drained.
	overflowMu sync.Mutex
	overflow   map[string]*events.RoomEvent
	overflowCh chan struct{}
}

var _ events.Publisher = (*ConnectionManager)(nil)

// Connection represents a single WebSocket connection
type Connection struct {
	ID          string
	UserID      uuid.UUID
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager
	ConnectedAt time.Time

	// guarded by Manager.mu; Send is closed under the same lock
	rooms  map[uuid.UUID]bool
	closed bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	BroadcastBuffer int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default configuration for connections
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		BroadcastBuffer: 1000,
		CheckOrigin: func(r *http.Request) bool {
			// Origins are enforced by the CORS layer in front of the gateway
			return true
		},
	}
}

// NewConnectionManager creates a new connection manager. It can be handed
// to the room sessions as their publisher before the dispatcher exists.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	if config.BroadcastBuffer <= 0 {
		config.BroadcastBuffer = 1000
	}
	return &ConnectionManager{
		rooms: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.RoomEvent, config.BroadcastBuffer),
		done:        make(chan struct{}),
		overflow:    make(map[string]*events.RoomEvent),
		overflowCh:  make(chan struct{}, 1),
	}
}

// SetDispatcher installs the handler for client frames. It must be called
// before the first connection is upgraded.
func (cm *ConnectionManager) SetDispatcher(d *Dispatcher) {
	cm.dispatcher = d
	d.manager = cm
}

// Start runs the broadcast loop until ctx is cancelled. A single loop keeps
// the per-room order in which events were published.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("starting room connection manager")
	defer close(cm.done)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room connection manager shutting down")
			cm.closeAll()
			return
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
			if len(cm.broadcastCh) == 0 {
				cm.flushOverflow()
			}
		case <-cm.overflowCh:
			if len(cm.broadcastCh) == 0 {
				cm.flushOverflow()
			}
		}
	}
}

// Done is closed once Start has returned.
func (cm *ConnectionManager) Done() <-chan struct{} { return cm.done }

// Publish queues a room event for its subscribers. It is called under the
// room lock, so it never waits on a full queue. Once a room's events stop
// fitting, the room is held back: ticks and deltas are dropped and only its
// newest room-update is kept, to be sent after everything already queued.
// Every mutation ends in a room-update, so clients still converge on the
// final state.
func (cm *ConnectionManager) Publish(event *events.RoomEvent) {
	cm.overflowMu.Lock()
	defer cm.overflowMu.Unlock()

	if _, held := cm.overflow[event.RoomID]; !held {
		select {
		case cm.broadcastCh <- event:
			return
		default:
		}
	}

	switch event.Type {
	case events.EventTypeVotingTick:
		log.Debug().
			Str("room_id", event.RoomID).
			Uint64("seq", event.Seq).
			Msg("broadcast channel full, dropping voting tick")
		return
	case events.EventTypeRoomUpdate:
		cm.overflow[event.RoomID] = event
	default:
		log.Warn().
			Str("room_id", event.RoomID).
			Str("type", string(event.Type)).
			Uint64("seq", event.Seq).
			Msg("broadcast channel full, dropping room event")
		if _, held := cm.overflow[event.RoomID]; !held {
			// Holds the room so no later event overtakes the next room-update
			cm.overflow[event.RoomID] = nil
		}
	}
	select {
	case cm.overflowCh <- struct{}{}:
	default:
	}
}

// flushOverflow sends the held room-updates and releases their rooms. It
// runs on the broadcast loop once the queue is empty, so each held event
// follows everything its room published before it.
func (cm *ConnectionManager) flushOverflow() {
	cm.overflowMu.Lock()
	held := cm.overflow
	if len(held) == 0 {
		cm.overflowMu.Unlock()
		return
	}
	cm.overflow = make(map[string]*events.RoomEvent)
	cm.overflowMu.Unlock()

	for _, event := range held {
		if event != nil {
			cm.handleBroadcast(event)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket for userID.
// When roomID is set the connection is subscribed to it right away.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID uuid.UUID, roomID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		rooms:       make(map[uuid.UUID]bool),
	}

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID.String()).
		Msg("new WebSocket connection established")

	go connection.writePump()
	if roomID != uuid.Nil {
		cm.dispatcher.join(connection, roomID, "")
	}
	go connection.readPump()
	return nil
}

// Subscribe adds the connection to a room's broadcast set. It returns false
// once the connection has closed.
func (cm *ConnectionManager) Subscribe(conn *Connection, roomID uuid.UUID) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn.closed {
		return false
	}
	if cm.rooms[roomID] == nil {
		cm.rooms[roomID] = make(map[*Connection]bool)
	}
	cm.rooms[roomID][conn] = true
	conn.rooms[roomID] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", roomID.String()).
		Int("room_connections", len(cm.rooms[roomID])).
		Msg("connection subscribed to room")
	return true
}

// Unsubscribe removes the connection from a room. It reports whether the
// user still has another connection in that room.
func (cm *ConnectionManager) Unsubscribe(conn *Connection, roomID uuid.UUID) (stillPresent bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.unsubscribeLocked(conn, roomID)
}

func (cm *ConnectionManager) unsubscribeLocked(conn *Connection, roomID uuid.UUID) bool {
	delete(conn.rooms, roomID)
	conns, ok := cm.rooms[roomID]
	if !ok {
		return false
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(cm.rooms, roomID)
		return false
	}
	for other := range conns {
		if other.UserID == conn.UserID {
			return true
		}
	}
	return false
}

// unregisterConnection drops the connection from every room and marks the
// user offline where no other connection of theirs remains.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	var offline []uuid.UUID
	for roomID := range conn.rooms {
		if !cm.unsubscribeLocked(conn, roomID) {
			offline = append(offline, roomID)
		}
	}
	conn.closed = true
	close(conn.Send)
	cm.mu.Unlock()

	for _, roomID := range offline {
		cm.dispatcher.disconnected(roomID, conn.UserID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID.String()).
		Int("rooms", len(offline)).
		Msg("WebSocket connection closed")
}

// SendToConnection queues a frame for one connection without blocking.
func (cm *ConnectionManager) SendToConnection(conn *Connection, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal frame")
		return
	}
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if conn.closed {
		return
	}
	select {
	case conn.Send <- data:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, dropping frame")
	}
}

// handleBroadcast sends an event to every connection subscribed to its room
func (cm *ConnectionManager) handleBroadcast(event *events.RoomEvent) {
	roomID, err := uuid.Parse(event.RoomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", event.RoomID).Msg("broadcast for invalid room id")
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("failed to marshal room event")
		return
	}

	// Sends never block, so they happen under the read lock that keeps Send open.
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	connections := cm.rooms[roomID]
	if len(connections) == 0 {
		return
	}

	for conn := range connections {
		select {
		case conn.Send <- data:
		default:
			// A connection that cannot keep up would otherwise see gaps in seq
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID.String()).
				Msg("connection send buffer full, closing connection")
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("room_id", event.RoomID).
		Str("type", string(event.Type)).
		Uint64("seq", event.Seq).
		Int("connections", len(connections)).
		Msg("broadcasted room event")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	seen := make(map[*Connection]bool)
	for _, conns := range cm.rooms {
		for conn := range conns {
			seen[conn] = true
		}
	}
	cm.mu.RUnlock()
	for conn := range seen {
		conn.Conn.Close()
	}
}

// ConnectionStats is a point-in-time view of the gateway.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
	QueuedEvents     int            `json:"queued_events"`
	HeldRooms        int            `json:"held_rooms"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveRooms:     len(cm.rooms),
		RoomConnections: make(map[string]int, len(cm.rooms)),
		QueuedEvents:    len(cm.broadcastCh),
	}
	unique := make(map[*Connection]bool)
	for roomID, conns := range cm.rooms {
		stats.RoomConnections[roomID.String()] = len(conns)
		for conn := range conns {
			unique[conn] = true
		}
	}
	stats.TotalConnections = len(unique)

	cm.overflowMu.Lock()
	stats.HeldRooms = len(cm.overflow)
	cm.overflowMu.Unlock()
	return stats
}

// writePump pumps messages from the Send channel to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to write WebSocket message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the dispatcher
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("WebSocket error")
			}
			break
		}
		c.Manager.dispatcher.handle(c, message)
	}
}
