package session

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Audatic07/collab-notes/internal/models"
)

const writeWait = 10 * time.Second

// ClientOptions tunes the websocket transport of one connection.
type ClientOptions struct {
	SendBuffer     int
	MaxMessageSize int64
	PingInterval   time.Duration
}

// DefaultClientOptions mirrors the configuration defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{SendBuffer: 256, MaxMessageSize: 1 << 20, PingInterval: 54 * time.Second}
}

// Client is the transport side of a session: a websocket plus a buffered
// outbound queue drained by WritePump.
type Client struct {
	Conn   *websocket.Conn
	log    *zap.Logger
	opts   ClientOptions
	send   chan []byte
	mu     sync.Mutex
	closed bool
	hook   func(models.WSFrame)
}

func NewClient(conn *websocket.Conn, log *zap.Logger, opts ClientOptions) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultClientOptions().SendBuffer
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultClientOptions().PingInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{Conn: conn, log: log, opts: opts, send: make(chan []byte, opts.SendBuffer)}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send encodes and queues a frame. It never blocks; false means the frame
// was dropped because the client is closed or its queue is full.
func (c *Client) Send(frame models.WSFrame) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("failed to encode frame", zap.String("type", frame.Type), zap.Error(err))
		return false
	}
	return c.deliver(frame, payload)
}

func (c *Client) deliver(frame models.WSFrame, payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.hook != nil {
		c.hook(frame)
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close stops further delivery. WritePump flushes what is queued, sends a
// close frame and closes the connection. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump reads frames until the connection fails or handle returns an
// error. Idle connections are dropped once a pong is overdue.
func (c *Client) ReadPump(handle func(raw []byte) error) {
	pongWait := c.opts.PingInterval * 10 / 9
	if c.opts.MaxMessageSize > 0 {
		c.Conn.SetReadLimit(c.opts.MaxMessageSize)
	}
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if err := handle(raw); err != nil {
			c.log.Debug("stopping read pump", zap.Error(err))
			return
		}
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("message exceeded maximum size", zap.Int64("limit", c.opts.MaxMessageSize))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.log.Debug("client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF):
		c.log.Debug("connection closed", zap.Error(err))
	default:
		c.log.Info("websocket read error", zap.Error(err))
	}
}

// WritePump drains the send queue onto the socket, one message per frame,
// and pings on the configured interval.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Info("websocket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Info("websocket ping error", zap.Error(err))
				return
			}
		}
	}
}
