// Package ws manages the websocket connections that stream session
// updates to live thread viewers.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Upgrader is shared by every stream endpoint. Origin checking is the
// edge proxy's concern.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const sendBuffer = 256

// Client is one connected viewer. Writes go through a buffered channel
// and a single write pump; a client that cannot drain its buffer is
// dropped rather than allowed to stall the session.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger
	once sync.Once
	done chan struct{}
}

// Hub tracks live clients per post so shutdown can close them all.
type Hub struct {
	log *zap.Logger

	mu     sync.RWMutex
	byPost map[string]map[*Client]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, byPost: make(map[string]map[*Client]struct{})}
}

// Register wraps an upgraded connection, starts its write pump and
// tracks it under postID.
func (h *Hub) Register(postID string, conn *websocket.Conn) *Client {
	c := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		log:  h.log,
		done: make(chan struct{}),
	}
	h.mu.Lock()
	if h.byPost[postID] == nil {
		h.byPost[postID] = make(map[*Client]struct{})
	}
	h.byPost[postID][c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	return c
}

// Unregister removes the client and closes it.
func (h *Hub) Unregister(postID string, c *Client) {
	h.mu.Lock()
	if clients, ok := h.byPost[postID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.byPost, postID)
		}
	}
	h.mu.Unlock()
	c.Close()
}

// Count reports live viewers of a post.
func (h *Hub) Count(postID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPost[postID])
}

// CloseAll drops every connection. Used on service shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := make([]*Client, 0)
	for _, clients := range h.byPost {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.byPost = make(map[string]map[*Client]struct{})
	h.mu.Unlock()
	for _, c := range all {
		c.Close()
	}
}

// Send marshals v and enqueues it. Returns false when the client's
// buffer is full or the client is closed; the caller should drop it.
func (c *Client) Send(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("ws marshal failed", zap.Error(err))
		return true
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close signals the client to shut down. Safe to call more than once
// and from any goroutine; the write pump owns the connection and emits
// the close frame on its way out, so there is never a second writer.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// ReadUntilClose discards inbound frames until the peer disconnects.
// The stream is one-way; reading only serves to detect the close.
func (c *Client) ReadUntilClose() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the connection's only writer.
func (c *Client) writePump() {
	defer func() {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		}
	}
}
