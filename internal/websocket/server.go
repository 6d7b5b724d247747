package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scrubslab/scrubs/pkg/logger"
)

const (
	writeWait      = 5 * time.Second
	clientBuffer   = 32
	maxMessageSize = 4096
)

// Message is the envelope pushed to connected UI clients
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Server broadcasts engine events (playback position, region revisions) to
// connected host UI clients over WebSocket
type Server struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a new WebSocket broadcast server
func NewServer(allowedOrigins []string, log *logger.Logger) *Server {
	allowAll := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range allowedOrigins {
					if allowed == origin {
						return true
					}
				}
				return false
			},
		},
		logger:  log.Named("websocket"),
		clients: make(map[*client]struct{}),
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and keeps it
// subscribed until the client disconnects
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Debug("WebSocket client connected", logger.Int("clients", count))

	go s.writeLoop(c)
	go s.readLoop(c)
}

// Broadcast sends a message to every connected client. Slow clients are
// dropped rather than allowed to stall the engine.
func (s *Server) Broadcast(msgType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		s.logger.Error("Failed to marshal broadcast message", logger.Error(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			// buffer full; drop the client (removeClient needs the write lock)
			go s.removeClient(c)
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects all clients
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		c.conn.Close()
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	// closing send under the lock releases the write loop; Broadcast holds
	// the read lock while sending, so it can never hit a closed channel
	close(c.send)
	s.mu.Unlock()

	c.conn.Close()
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.removeClient(c)
			return
		}
	}
}

// readLoop drains client messages; the UI feed is one-way, so anything
// received is discarded, but the read pump is required to notice closes
func (s *Server) readLoop(c *client) {
	defer s.removeClient(c)
	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
