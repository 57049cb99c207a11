package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"instapro/internal/domain/entity"
	"instapro/internal/infrastructure/metrics"
	"instapro/internal/infrastructure/ratelimit"
	"instapro/internal/usecase"
	"instapro/pkg/live"
	"instapro/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one websocket connection. It owns the chat sessions and
// presence observers opened through it.
type Client struct {
	UserID   string
	Username string
	Conn     *websocket.Conn
	Send     chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	sessions  map[string]*usecase.ChatSession
	observers map[string]*live.Subscription[entity.Presence]
	users     *live.Subscription[[]*entity.User]
}

func NewClient(identity entity.Identity, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		UserID:    identity.UID,
		Username:  identity.Username,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*usecase.ChatSession),
		observers: make(map[string]*live.Subscription[entity.Presence]),
	}
}

func (c *Client) identity() entity.Identity {
	return entity.Identity{UID: c.UserID, Username: c.Username}
}

// enqueue never blocks; a client that cannot keep up loses frames.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		logger.Warn("WebSocket: send buffer full for %s, dropping frame", c.Username)
		return false
	}
}

// shutdown closes Send and everything the connection opened.
func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	sessions, observers, users := c.sessions, c.observers, c.users
	c.sessions, c.observers, c.users = nil, nil, nil
	c.mu.Unlock()

	c.cancel()
	for _, s := range sessions {
		s.Close()
	}
	for _, sub := range observers {
		sub.Close()
	}
	if users != nil {
		users.Close()
	}
}

// Manager tracks connections per user. A user counts as active while at
// least one connection is open.
type Manager struct {
	clients    map[string]map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex

	directory     *usecase.DirectoryUseCase
	conversations *usecase.ConversationUseCase
	messages      *usecase.MessageUseCase
	pipeline      *usecase.SendPipeline
	presence      *usecase.PresenceUseCase
	limiter       *ratelimit.RateLimiter
}

func NewManager(
	directory *usecase.DirectoryUseCase,
	conversations *usecase.ConversationUseCase,
	messages *usecase.MessageUseCase,
	pipeline *usecase.SendPipeline,
	presence *usecase.PresenceUseCase,
	limiter *ratelimit.RateLimiter,
) *Manager {
	return &Manager{
		clients:       make(map[string]map[*Client]struct{}),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		done:          make(chan struct{}),
		directory:     directory,
		conversations: conversations,
		messages:      messages,
		pipeline:      pipeline,
		presence:      presence,
		limiter:       limiter,
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		for {
			select {
			case client := <-m.Register:
				m.register(client)

			case client := <-m.Unregister:
				m.unregister(client)

			case <-ctx.Done():
				m.closeAll()
				return
			}
		}
	}()
}

func (m *Manager) register(client *Client) {
	m.mutex.Lock()
	conns := m.clients[client.UserID]
	if conns == nil {
		conns = make(map[*Client]struct{})
		m.clients[client.UserID] = conns
	}
	conns[client] = struct{}{}
	first := len(conns) == 1
	m.mutex.Unlock()

	metrics.WsConnections.Inc()
	logger.Info("Client registered: %s", client.Username)
	if first {
		m.setPresence(client.Username, true)
	}
}

func (m *Manager) unregister(client *Client) {
	m.mutex.Lock()
	conns, ok := m.clients[client.UserID]
	if ok {
		if _, present := conns[client]; !present {
			ok = false
		}
		delete(conns, client)
		if len(conns) == 0 {
			delete(m.clients, client.UserID)
		}
	}
	last := ok && len(conns) == 0
	m.mutex.Unlock()

	if !ok {
		return
	}
	client.shutdown()
	metrics.WsConnections.Dec()
	logger.Info("Client unregistered: %s", client.Username)
	if last {
		m.setPresence(client.Username, false)
	}
}

func (m *Manager) closeAll() {
	m.mutex.Lock()
	var all []*Client
	for _, conns := range m.clients {
		for c := range conns {
			all = append(all, c)
		}
	}
	m.clients = make(map[string]map[*Client]struct{})
	m.mutex.Unlock()

	for _, c := range all {
		c.shutdown()
		metrics.WsConnections.Dec()
		m.setPresence(c.Username, false)
	}
}

func (m *Manager) setPresence(username string, active bool) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	// failures are logged by the presence usecase
	_ = m.presence.SetActive(ctx, username, active)
}

// SendToUser sends a frame to every open connection of a user.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for client := range m.clients[userID] {
		client.enqueue(message)
	}
}

// Done is closed once the manager has stopped and closed every client.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Attach hands a new connection to the manager. It reports false once the
// manager has stopped.
func (m *Manager) Attach(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

// ReadPump reads frames from the connection until it fails.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		select {
		case m.Unregister <- c:
		case <-m.done:
			c.shutdown()
		}
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
				logger.Warn("WebSocket read error for %s: %v", c.Username, err)
			}
			break
		}
		m.HandleClientMessage(c, message)
	}
}

// WritePump sends queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket write error for %s: %v", c.Username, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
