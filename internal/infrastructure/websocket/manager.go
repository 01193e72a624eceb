package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatcore/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client represents one WebSocket connection of a user.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// Done is closed once the manager dropped the client.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// SendJSON queues an envelope for the write pump. It reports false when the
// client is gone. A client whose buffer is full is closed rather than
// skipped, so it reconnects and starts from a fresh snapshot.
func (c *Client) SendJSON(message WSMessage) bool {
	if message.Timestamp == "" {
		message.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("WebSocket: failed to marshal %s for client %s: %v", message.Type, c.ID, err)
		return false
	}

	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.Send <- payload:
		return true
	case <-c.closed:
		return false
	default:
		log.Printf("WebSocket: send buffer full for client %s on %s, closing connection", c.ID, message.Type)
		c.close()
		return false
	}
}

// SendError queues an error envelope.
func (c *Client) SendError(code, message string) bool {
	return c.SendJSON(WSMessage{Type: MessageTypeError, Data: ErrorData{Code: code, Message: message}})
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Manager tracks all active WebSocket connections.
type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Add registers client. It reports false once the manager has stopped.
func (m *Manager) Add(client *Client) bool {
	select {
	case m.register <- client:
		return true
	case <-m.done:
		client.close()
		return false
	}
}

// Remove unregisters client; after shutdown it only closes the client.
func (m *Manager) Remove(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
		client.close()
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.register:
				m.mutex.Lock()
				m.clients[client.ID] = client
				m.mutex.Unlock()
				logger.Debug("Client registered: user=%s conn=%s", client.UserID, client.ID)

			case client := <-m.unregister:
				m.remove(client)
				logger.Debug("Client unregistered: user=%s conn=%s", client.UserID, client.ID)

			case <-ctx.Done():
				close(m.done)
				m.mutex.Lock()
				for _, client := range m.clients {
					client.close()
				}
				m.mutex.Unlock()
				logger.Info("WebSocket manager stopped")
				return
			}
		}
	}()
}

func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	delete(m.clients, client.ID)
	client.close()
}

func (m *Manager) ConnectionCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// ReadPump reads messages from the connection and hands each to onMessage.
// It unregisters the client when the connection ends.
func (c *Client) ReadPump(m *Manager, onMessage func(client *Client, message []byte)) {
	defer func() {
		m.Remove(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error for client %s: %v", c.ID, err)
			}
			break
		}
		onMessage(c, message)
	}
}

// WritePump sends queued messages and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
