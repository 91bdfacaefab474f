package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message is the wire format pushed to connected clients.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Target    string          `json:"target"`
}

// Manager handles WebSocket connections and per-user message routing
type Manager struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]bool
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	closed      bool
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan Message
}

// NewManager creates a new WebSocket manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		connections: make(map[string]map[*Connection]bool),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConnection upgrades an authenticated HTTP request and registers the
// connection under the caller's user id.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan Message, 256),
	}

	m.mu.Lock()
	if m.connections[userID] == nil {
		m.connections[userID] = make(map[*Connection]bool)
	}
	m.connections[userID][connection] = true
	m.mu.Unlock()

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// SendToUser pushes a message to every open connection of one user.
func (m *Manager) SendToUser(userID string, msg Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := m.connections[userID]
	if len(conns) == 0 {
		return fmt.Errorf("no active connections for user %s", userID)
	}
	for conn := range conns {
		select {
		case conn.Send <- msg:
		default:
			// Slow consumer; drop rather than block the dispatcher.
		}
	}
	return nil
}

// Broadcast pushes a message to every connection.
func (m *Manager) Broadcast(msg Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conns := range m.connections {
		for conn := range conns {
			select {
			case conn.Send <- msg:
			default:
			}
		}
	}
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conns, ok := m.connections[conn.UserID]; ok {
		if conns[conn] {
			delete(conns, conn)
			close(conn.Send)
		}
		if len(conns) == 0 {
			delete(m.connections, conn.UserID)
		}
	}
}

// readPump drains client frames and detects disconnects
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.unregister(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			break
		}
	}
}

// writePump pushes queued messages and keepalive pings to the client
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close terminates all open connections.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, conns := range m.connections {
		for conn := range conns {
			close(conn.Send)
			conn.Conn.Close()
		}
	}
	m.connections = make(map[string]map[*Connection]bool)
}
