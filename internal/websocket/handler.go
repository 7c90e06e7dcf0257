package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/consertja/consertja/internal/chat"
	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/session"
)

// Frame types
const (
	// Server to client
	FrameMessages = "messages"
	FrameUnread   = "unread"
	FrameError    = "error"

	// Client to server
	FrameSend = "send"
	FrameRead = "read"
)

const (
	writeWait            = 10 * time.Second
	pongWait             = 60 * time.Second
	pingPeriod           = 54 * time.Second
	maxMessageSize       = 64 * 1024
	maxMessagesPerMinute = 60
	sendBuffer           = 256
)

var log = logger.New("websocket")

// Frame is the envelope of every WebSocket message
type Frame struct {
	Type      string           `json:"type"`
	Content   string           `json:"content,omitempty"`
	Messages  []models.Message `json:"messages,omitempty"`
	Count     *int             `json:"count,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Client is one open conversation view
type Client struct {
	ID            uuid.UUID
	Session       models.Session
	CounterpartID string
	Socket        *websocket.Conn
	Send          chan []byte

	feed    *chat.Feed
	counter *chat.UnreadCounter
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

// Manager maintains the set of open views
type Manager struct {
	chat       *chat.Service
	upgrader   websocket.Upgrader
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.Mutex
}

// NewManager creates a manager opening views on svc. With no allowed
// origins every origin is accepted.
func NewManager(svc *chat.Service, allowedOrigins ...string) *Manager {
	m := &Manager{
		chat:       svc,
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}
	return m
}

// Run tracks clients until ctx is done, then closes every open view
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			m.clients[client.ID] = client
			m.mutex.Unlock()
			log.Info("Client connected: %s (%s with %s)", client.ID, client.Session.UserID, client.CounterpartID)
		case client := <-m.unregister:
			m.mutex.Lock()
			if _, ok := m.clients[client.ID]; ok {
				delete(m.clients, client.ID)
				client.close()
				log.Info("Client disconnected: %s", client.ID)
			}
			m.mutex.Unlock()
		case <-ctx.Done():
			close(m.done)
			m.mutex.Lock()
			for id, client := range m.clients {
				client.close()
				delete(m.clients, id)
			}
			m.mutex.Unlock()
			return
		}
	}
}

// Clients returns the number of open views
func (m *Manager) Clients() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.clients)
}

// HandleWebSocket opens a conversation view for the authenticated user
func (m *Manager) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("userID")
	role, _ := c.Get("role")
	self := models.Session{UserID: userID}
	if r, ok := role.(models.Role); ok {
		self.Role = r
	}
	if !self.Authenticated() || !self.Role.Valid() {
		log.Warn("No session in context, rejecting connection from %s", c.Request.RemoteAddr)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	counterpartID := c.Query("counterpart")
	if counterpartID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "counterpart is required"})
		return
	}

	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}

	client, err := m.open(self, counterpartID, conn)
	if err != nil {
		log.Error("Failed to open conversation view: %v", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		conn.Close()
		return
	}

	select {
	case m.register <- client:
	case <-m.done:
		client.close()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(m)
	go client.run(m.chat)
}

func (m *Manager) open(self models.Session, counterpartID string, conn *websocket.Conn) (*Client, error) {
	counter := m.chat.NewUnreadCounter(session.New(self, nil))
	feed, err := m.chat.OpenFeed(self, counterpartID, m.chat.NewReadSync(counter))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		ID:            uuid.New(),
		Session:       self,
		CounterpartID: counterpartID,
		Socket:        conn,
		Send:          make(chan []byte, sendBuffer),
		feed:          feed,
		counter:       counter,
		ctx:           ctx,
		cancel:        cancel,
	}

	feed.OnUpdate(func(messages []models.Message) {
		client.push(Frame{Type: FrameMessages, Messages: messages})
	})
	counter.OnChange(func(n int) {
		client.push(Frame{Type: FrameUnread, Count: &n})
	})
	return client, nil
}

// run drives the feed and the unread counter until the view closes
func (c *Client) run(svc *chat.Service) {
	n, _ := c.counter.Refresh(c.ctx)
	c.push(Frame{Type: FrameUnread, Count: &n})

	go c.counter.Run(c.ctx, svc.Changes())
	if err := c.feed.Run(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("Feed for client %s stopped: %v", c.ID, err)
	}
}

// push queues a frame without blocking. A client too slow to drain its
// buffer misses the frame; the next snapshot supersedes it.
func (c *Client) push(f Frame) {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	data, err := json.Marshal(f)
	if err != nil {
		log.Error("Failed to encode %s frame: %v", f.Type, err)
		return
	}

	select {
	case <-c.ctx.Done():
	case c.Send <- data:
	default:
		log.Warn("Client %s send buffer full, dropping %s frame", c.ID, f.Type)
	}
}

func (c *Client) close() {
	c.once.Do(c.cancel)
}

func (c *Client) pushError(msg string) {
	c.push(Frame{Type: FrameError, Error: msg})
}

// readPump applies client frames to the view
func (c *Client) readPump(m *Manager) {
	defer func() {
		select {
		case m.unregister <- c:
		case <-m.done:
			c.close()
		}
		c.Socket.Close()
	}()

	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	messageCount := 0
	lastResetTime := time.Now()

	for {
		_, data, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("Error reading from client %s: %v", c.ID, err)
			} else {
				log.Debug("Client %s closed connection: %v", c.ID, err)
			}
			return
		}

		if time.Since(lastResetTime) >= time.Minute {
			messageCount = 0
			lastResetTime = time.Now()
		}
		messageCount++
		if messageCount > maxMessagesPerMinute {
			log.Warn("Rate limit exceeded for client %s", c.ID)
			c.pushError("Rate limit exceeded")
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Debug("Invalid frame from client %s: %v", c.ID, err)
			c.pushError("Invalid message format")
			continue
		}

		switch frame.Type {
		case FrameSend:
			if _, err := c.feed.Send(c.ctx, frame.Content); err != nil {
				switch {
				case errors.Is(err, chat.ErrEmptyMessage):
					c.pushError("Message is empty")
				default:
					c.pushError("Message could not be sent")
				}
			}
		case FrameRead:
			if err := c.feed.MarkRead(c.ctx); err != nil {
				c.pushError("Could not mark conversation as read")
			}
		default:
			log.Warn("Unknown frame type '%s' from client %s", frame.Type, c.ID)
			c.pushError("Unknown message type")
		}
	}
}

// writePump writes queued frames and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Socket.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Native apps send no Origin header
		return origin == "" || set[origin]
	}
}
