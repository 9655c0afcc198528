// Package gateway implements the WebSocket client side of the host gateway
// protocol: connect handshake, request/response correlation, event
// dispatch, and automatic reconnect.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/clawrelay/pkg/protocol"
)

const (
	// maxWSMessageSize is the maximum allowed WebSocket message size (512KB).
	maxWSMessageSize = 512 * 1024

	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second

	// defaultRequestTimeout bounds every gateway call; a timed-out request
	// is treated as failed, not retried.
	defaultRequestTimeout = 10 * time.Second

	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// ErrClosed is returned for requests made after Close.
var ErrClosed = errors.New("gateway: client closed")

// Error is a gateway-reported request failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s: %s", e.Code, e.Message)
}

// EventHandler receives gateway events. Handlers run on their own
// goroutine so slow handling never blocks the read loop.
type EventHandler func(ctx context.Context, event string, payload json.RawMessage)

// Config holds the gateway connection settings.
type Config struct {
	URL            string // ws:// or wss:// endpoint
	Token          string
	RequestTimeout time.Duration // 0 = defaultRequestTimeout
}

// Client maintains one WebSocket connection to the gateway, reconnecting
// with capped exponential backoff when it drops.
type Client struct {
	cfg     Config
	handler EventHandler

	mu       sync.Mutex
	conn     *websocket.Conn
	inflight map[string]chan *protocol.ResponseFrame
	running  bool
	closed   bool
	cancel   context.CancelFunc
}

func NewClient(cfg Config, handler EventHandler) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Client{
		cfg:      cfg,
		handler:  handler,
		inflight: make(map[string]chan *protocol.ResponseFrame),
	}
}

// Start launches the connect/reconnect loop. Idempotent.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	go c.connectLoop(ctx)
}

// Close shuts the client down and fails all in-flight requests.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.running = false
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.conn
	c.conn = nil
	c.failInflightLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	slog.Info("gateway client closed")
}

// Connected reports whether a handshaked connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Request invokes a gateway method and waits for the correlated response,
// bounded by the configured request timeout.
func (c *Client) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	id := uuid.NewString()
	respCh := make(chan *protocol.ResponseFrame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	conn := c.conn
	c.inflight[id] = respCh
	c.mu.Unlock()

	if conn == nil {
		c.dropInflight(id)
		return nil, errors.New("gateway: not connected")
	}

	if err := c.writeFrame(conn, protocol.NewRequest(id, method, params)); err != nil {
		c.dropInflight(id)
		return nil, fmt.Errorf("gateway: write %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.dropInflight(id)
		return nil, fmt.Errorf("gateway: %s: %w", method, ctx.Err())
	case resp := <-respCh:
		if resp == nil {
			// Channel closed: the connection dropped or the client shut down.
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("gateway: %s: connection lost", method)
		}
		if !resp.OK {
			code, msg := protocol.ErrInternal, "unknown error"
			if resp.Error != nil {
				code, msg = resp.Error.Code, resp.Error.Message
			}
			return nil, &Error{Code: code, Message: msg}
		}
		return resp.Payload, nil
	}
}

// --- Connection management ---

func (c *Client) connectLoop(ctx context.Context) {
	backoff := reconnectMin

	for ctx.Err() == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			slog.Warn("gateway connect failed", "url", c.cfg.URL, "retry_in", backoff, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, reconnectMax)
			continue
		}

		backoff = reconnectMin
		slog.Info("gateway connected", "url", c.cfg.URL)

		pingCtx, stopPing := context.WithCancel(ctx)
		go c.pingLoop(pingCtx, conn)
		c.readLoop(ctx, conn)
		stopPing()

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.failInflightLocked()
		c.mu.Unlock()
		conn.Close()

		if ctx.Err() == nil {
			slog.Warn("gateway connection lost, reconnecting")
		}
	}
}

// dial establishes the WebSocket connection and performs the connect
// handshake before the connection is made visible to Request.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, writeDeadline)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	conn.SetReadLimit(maxWSMessageSize)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	if err := c.handshake(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

// handshake sends connect and reads the direct response. The gateway sends
// no events before the handshake response, so reading in-line is safe.
func (c *Client) handshake(conn *websocket.Conn) error {
	req := protocol.NewRequest(uuid.NewString(), protocol.MethodConnect, protocol.ConnectParams{
		Token:           c.cfg.Token,
		Client:          "clawrelay",
		ProtocolVersion: protocol.ProtocolVersion,
	})
	if err := c.writeFrame(conn, req); err != nil {
		return err
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	var resp protocol.ResponseFrame
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	if !resp.OK {
		code := protocol.ErrUnauthorized
		msg := "connect rejected"
		if resp.Error != nil {
			code, msg = resp.Error.Code, resp.Error.Message
		}
		return &Error{Code: code, Message: msg}
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("gateway read error", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		c.handleFrame(ctx, data)
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	frameType, err := protocol.ParseFrameType(data)
	if err != nil {
		slog.Debug("gateway sent invalid frame", "error", err)
		return
	}

	switch frameType {
	case protocol.FrameTypeResponse:
		var resp protocol.ResponseFrame
		if err := json.Unmarshal(data, &resp); err != nil {
			slog.Debug("malformed response frame", "error", err)
			return
		}
		c.mu.Lock()
		ch, ok := c.inflight[resp.ID]
		if ok {
			delete(c.inflight, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}

	case protocol.FrameTypeEvent:
		var ev protocol.EventFrame
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Debug("malformed event frame", "error", err)
			return
		}
		if c.handler != nil {
			go c.handler(ctx, ev.Event, ev.Payload)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// writeFrame serializes writes; gorilla/websocket allows one writer at a
// time and requests, pings and the handshake share the connection.
func (c *Client) writeFrame(conn *websocket.Conn, frame interface{}) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) dropInflight(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
}

// failInflightLocked wakes every waiting request by closing its channel.
// Must be called with c.mu held.
func (c *Client) failInflightLocked() {
	for id, ch := range c.inflight {
		delete(c.inflight, id)
		close(ch)
	}
}
