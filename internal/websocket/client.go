package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024

	sendBufferSize = 256
)

// Client is one live websocket connection. Frames are read and handled in
// order by a single reader; a single writer drains the send queue.
type Client struct {
	ID     string // connection handle, as stored in the registry
	UserID string

	conn    *websocket.Conn
	send    chan []byte
	dropped prometheus.Counter
	logger  *Logger

	mu     sync.RWMutex
	groups map[string]bool
	closed bool
}

func NewClient(conn *websocket.Conn, id, userID string, dropped prometheus.Counter, logger *Logger) *Client {
	return &Client{
		ID:      id,
		UserID:  userID,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		dropped: dropped,
		logger:  logger,
		groups:  make(map[string]bool),
	}
}

// SendMessage queues a frame without blocking. A full queue drops the
// frame; delivery is at most once.
func (c *Client) SendMessage(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		if c.dropped != nil {
			c.dropped.Inc()
		}
		c.logger.Warn("send queue full, frame dropped", c.UserID, c.ID)
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) join(groupID string) {
	c.mu.Lock()
	c.groups[groupID] = true
	c.mu.Unlock()
}

func (c *Client) leave(groupID string) {
	c.mu.Lock()
	delete(c.groups, groupID)
	c.mu.Unlock()
}

func (c *Client) groupSet() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.groups))
	for id := range c.groups {
		out[id] = true
	}
	return out
}

// IsSubscribed reports whether the client joined the group room
func (c *Client) IsSubscribed(groupID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.groups[groupID]
}

// readPump hands every inbound text frame to handle, one at a time, until
// the connection fails or ctx ends. onPong runs on every pong.
func (c *Client) readPump(ctx context.Context, handle func(context.Context, []byte), onPong func()) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if onPong != nil {
			onPong()
		}
		return nil
	})

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.UserID, c.ID, err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		handle(ctx, frame)
	}
}

// writePump writes one frame per websocket message and keeps the peer
// alive with pings. It returns when the send queue is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("websocket write failed", c.UserID, c.ID)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
