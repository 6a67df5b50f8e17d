// Package realtime pushes server events to users' open websocket connections.
package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dealscout/investor-portal/portal-backend/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// ErrClosed is returned when a connection arrives after Close.
var ErrClosed = errors.New("realtime manager closed")

// Manager handles WebSocket connections and routes events to them by user.
type Manager struct {
	hub      *hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
	once     sync.Once
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID        string
	UserID    string
	SessionID string
	Conn      *websocket.Conn
	Send      chan Message

	mu           sync.Mutex
	lastActivity time.Time
}

type countRequest struct {
	userID string
	reply  chan int
}

// hub owns the connection set. Only the hub goroutine closes a Send channel.
type hub struct {
	connections map[*Connection]struct{}
	deliver     chan Message
	register    chan *Connection
	unregister  chan *Connection
	count       chan countRequest
	stop        chan struct{}
	done        chan struct{}
	logger      *zap.Logger
}

// NewManager creates a manager and starts its hub. allowedOrigin of "" or "*"
// accepts any Origin header.
func NewManager(allowedOrigin string, logger *zap.Logger) *Manager {
	h := &hub{
		connections: make(map[*Connection]struct{}),
		deliver:     make(chan Message, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		count:       make(chan countRequest),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger,
	}
	go h.run()

	return &Manager{
		hub:    h,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// ServeWS upgrades an authenticated request. Mount it behind auth.Middleware.
func (m *Manager) ServeWS(c *gin.Context) {
	id, ok := auth.Require(c)
	if !ok {
		return
	}
	if _, err := m.HandleConnection(c.Writer, c.Request, id); err != nil {
		m.logger.Warn("Websocket upgrade failed", zap.String("user_id", id.UserID), zap.Error(err))
	}
}

// HandleConnection upgrades the request and starts the connection pumps.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, id auth.Identity) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:           uuid.New().String(),
		UserID:       id.UserID,
		SessionID:    id.SessionID,
		Conn:         conn,
		Send:         make(chan Message, sendBuffer),
		lastActivity: time.Now(),
	}

	select {
	case m.hub.register <- connection:
	case <-m.hub.stop:
		conn.Close()
		return nil, ErrClosed
	}

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// NotifyUser queues an event for every connection the user has open. It never
// blocks; events are dropped when the hub is backed up or closed.
func (m *Manager) NotifyUser(userID, eventType string, payload any) {
	msg := Message{Type: eventType, Data: payload, Timestamp: time.Now().UTC(), Target: userID}
	select {
	case <-m.hub.stop:
		return
	default:
	}
	select {
	case m.hub.deliver <- msg:
	default:
		m.logger.Warn("Realtime delivery queue full, dropping event",
			zap.String("user_id", userID), zap.String("type", eventType))
	}
}

// ConnectionCount returns the number of open connections for userID, or all
// connections when userID is empty.
func (m *Manager) ConnectionCount(userID string) int {
	req := countRequest{userID: userID, reply: make(chan int, 1)}
	select {
	case m.hub.count <- req:
		return <-req.reply
	case <-m.hub.done:
		return 0
	}
}

// Close disconnects every client and stops the hub.
func (m *Manager) Close() {
	m.once.Do(func() {
		close(m.hub.stop)
		<-m.hub.done
	})
}

func (m *Manager) readPump(conn *Connection) {
	defer func() {
		select {
		case m.hub.unregister <- conn:
		case <-m.hub.done:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(maxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := conn.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("Websocket read failed", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}

		conn.mu.Lock()
		conn.lastActivity = time.Now()
		conn.mu.Unlock()

		m.handleMessage(conn, &msg)
	}
}

func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers a client hello with its connection id. Other frames
// only refresh the activity timestamp.
func (m *Manager) handleMessage(conn *Connection, msg *Message) {
	if msg.Type != MessageTypeHello {
		return
	}
	m.NotifyUser(conn.UserID, EventStatus, map[string]any{
		"status":        "connected",
		"connection_id": conn.ID,
		"session_id":    conn.SessionID,
	})
}

func (h *hub) run() {
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			h.connections[conn] = struct{}{}
			h.logger.Debug("Connection registered", zap.String("connection_id", conn.ID), zap.String("user_id", conn.UserID))

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.deliver:
			for conn := range h.connections {
				if conn.UserID != msg.Target {
					continue
				}
				select {
				case conn.Send <- msg:
				default:
					h.logger.Warn("Slow websocket client, disconnecting", zap.String("connection_id", conn.ID))
					h.drop(conn)
				}
			}

		case req := <-h.count:
			n := 0
			for conn := range h.connections {
				if req.userID == "" || conn.UserID == req.userID {
					n++
				}
			}
			req.reply <- n

		case <-h.stop:
			for conn := range h.connections {
				h.drop(conn)
			}
			return
		}
	}
}

func (h *hub) drop(conn *Connection) {
	if _, ok := h.connections[conn]; !ok {
		return
	}
	delete(h.connections, conn)
	close(conn.Send)
	h.logger.Debug("Connection unregistered", zap.String("connection_id", conn.ID), zap.String("user_id", conn.UserID))
}
