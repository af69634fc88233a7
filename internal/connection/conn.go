package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/cablewatch/internal/monitor"
)

// Conn is a WebSocket session that reopens itself when its monitor says so.
type Conn struct {
	cfg      Config
	logger   *slog.Logger
	dialer   *websocket.Dialer
	observer Observer
	monitor  *monitor.Monitor

	monitorOpts []monitor.Option

	// Lifetime of the Conn, canceled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	messages chan TimestampedMessage

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	ws        *websocket.Conn
	done      chan struct{} // closed when ws is released
	sessionID string
	connected bool
	closed    bool

	reopening atomic.Bool
}

// Option configures a Conn.
type Option func(*Conn)

// WithObserver sets a receiver for dial results.
func WithObserver(o Observer) Option {
	return func(c *Conn) {
		c.observer = o
	}
}

// WithDialer sets a custom WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Conn) {
		c.dialer = d
	}
}

// WithMonitorOptions passes options through to the connection monitor.
func WithMonitorOptions(opts ...monitor.Option) Option {
	return func(c *Conn) {
		c.monitorOpts = append(c.monitorOpts, opts...)
	}
}

// New creates a Conn and its monitor. Nothing is dialed until Open.
func New(cfg Config, opts monitor.Options, logger *slog.Logger, options ...Option) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 0 {
		cfg.BufferSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		cfg:    cfg,
		logger: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		ctx:      ctx,
		cancel:   cancel,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
	}

	for _, opt := range options {
		opt(c)
	}

	monitorOpts := append([]monitor.Option{
		monitor.WithLogger(logger.With("component", "monitor")),
	}, c.monitorOpts...)
	c.monitor = monitor.New(c, opts, monitorOpts...)

	return c
}

// Open starts the monitor and dials the server. The monitor runs even when
// the first dial fails, so a reconnecting Conn recovers on its own.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.RLock()
	closed, connected := c.closed, c.connected
	c.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}
	if connected {
		return nil
	}

	c.monitor.Start()
	return c.dial(ctx)
}

// Reopen replaces the current socket with a fresh one. It returns
// immediately; concurrent requests collapse into one.
func (c *Conn) Reopen() {
	if !c.reopening.CompareAndSwap(false, true) {
		c.logger.Debug("reopen already in progress")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.reopening.Store(false)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.reopening.Store(false)

		c.logger.Info("reopening websocket", "url", c.cfg.URL)
		c.closeSocket()

		ctx, cancel := c.dialContext()
		defer cancel()

		if err := c.dial(ctx); err != nil {
			c.logger.Warn("reopen failed", "error", err)
		}
	}()
}

// Close stops the monitor and closes the connection. Safe to call twice.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.monitor.Stop()
	c.cancel()

	err := c.closeSocket()
	c.wg.Wait()
	close(c.messages)

	c.logger.Debug("websocket closed", "url", c.cfg.URL)
	return err
}

// Send writes raw bytes to the connection.
func (c *Conn) Send(data []byte) error {
	c.mu.RLock()
	ws := c.ws
	connected := c.connected
	c.mu.RUnlock()

	if !connected || ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(c.writeTimeout()))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the channel of inbound messages. It is closed by Close.
func (c *Conn) Messages() <-chan TimestampedMessage {
	return c.messages
}

// IsConnected returns the current connection state.
func (c *Conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SessionID identifies the current socket. It changes on every reconnect.
func (c *Conn) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Monitor returns the liveness monitor owned by this connection.
func (c *Conn) Monitor() *monitor.Monitor {
	return c.monitor
}

// Stats returns current connection and monitor state.
func (c *Conn) Stats() Stats {
	c.mu.RLock()
	connected, sessionID := c.connected, c.sessionID
	c.mu.RUnlock()

	return Stats{
		Connected: connected,
		SessionID: sessionID,
		URL:       c.cfg.URL,
		Monitor:   c.monitor.Snapshot(),
	}
}

func (c *Conn) dialContext() (context.Context, context.CancelFunc) {
	if c.cfg.HandshakeTimeout > 0 {
		return context.WithTimeout(c.ctx, c.cfg.HandshakeTimeout)
	}
	return context.WithCancel(c.ctx)
}

// dial opens a socket and makes it current.
func (c *Conn) dial(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if c.observer != nil {
		c.observer.ObserveDial(err == nil)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	// Server sends ping, we respond with pong
	ws.SetPingHandler(func(data string) error {
		c.monitor.RecordPing()
		return ws.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping
	ws.SetPongHandler(func(string) error {
		c.monitor.RecordPing()
		return nil
	})

	sessionID := uuid.NewString()
	done := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return ErrAlreadyClosed
	}
	if c.ws != nil {
		// Lost a race with another dial; keep the socket already in use
		c.mu.Unlock()
		ws.Close()
		return nil
	}
	// A handshake alone is not a connect: attempts reset on the server's welcome.
	c.monitor.RecordPing()
	c.ws = ws
	c.done = done
	c.sessionID = sessionID
	c.connected = true

	c.wg.Add(1)
	go c.readLoop(ws, sessionID, done)
	if c.cfg.PingInterval > 0 {
		c.wg.Add(1)
		go c.heartbeatLoop(ws, done)
	}
	c.mu.Unlock()

	c.logger.Info("websocket connected",
		"url", c.cfg.URL,
		"session", sessionID,
	)

	return nil
}

// detach releases ws if it is still the current socket and stops its loops.
// It reports whether ws was released by this call.
func (c *Conn) detach(ws *websocket.Conn) bool {
	c.mu.Lock()
	if ws == nil || c.ws != ws {
		c.mu.Unlock()
		return false
	}
	done := c.done
	c.ws = nil
	c.done = nil
	c.connected = false
	c.mu.Unlock()

	close(done)
	return true
}

// closeSocket gracefully closes the current socket, if any.
func (c *Conn) closeSocket() error {
	c.mu.RLock()
	ws := c.ws
	c.mu.RUnlock()

	if !c.detach(ws) {
		return nil
	}

	ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return ws.Close()
}

// readLoop reads messages from ws until it fails or is released.
func (c *Conn) readLoop(ws *websocket.Conn, sessionID string, done <-chan struct{}) {
	defer c.wg.Done()

	for {
		_, data, err := ws.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after the socket was released on purpose
			select {
			case <-done:
				return
			default:
			}

			if c.detach(ws) {
				ws.Close()
				c.monitor.RecordDisconnect()
				c.logger.Warn("websocket read failed",
					"session", sessionID,
					"error", err,
				)
			}
			return
		}

		c.monitor.RecordPing()

		if c.handleControl(data) {
			continue
		}

		msg := TimestampedMessage{
			Data:       data,
			SessionID:  sessionID,
			ReceivedAt: receivedAt,
		}

		select {
		case c.messages <- msg:
		case <-done:
			return
		default:
			c.logger.Warn("message buffer full, dropping message")
		}
	}
}

// handleControl feeds welcome, ping and disconnect frames to the monitor.
// It reports whether the message was consumed.
func (c *Conn) handleControl(data []byte) bool {
	// Quick check before paying for a JSON decode
	if !bytes.Contains(data, []byte(`"type"`)) {
		return false
	}

	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}

	switch msg.Type {
	case TypeWelcome:
		c.monitor.RecordConnect()
		return true
	case TypePing:
		c.monitor.RecordPing()
		return true
	case TypeDisconnect:
		c.monitor.RecordDisconnect()
		if msg.Reconnect != nil && !*msg.Reconnect {
			// The server refused us (e.g. unauthorized); redialing won't help.
			c.monitor.Stop()
			c.logger.Warn("server disconnected without reconnect, monitor stopped",
				"reason", msg.Reason,
			)
			return true
		}
		c.logger.Info("server requested disconnect", "reason", msg.Reason)
		return true
	}

	return false
}

// heartbeatLoop sends ping frames so the server answers with pongs.
func (c *Conn) heartbeatLoop(ws *websocket.Conn, done <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout())
			if err := ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}

func (c *Conn) writeTimeout() time.Duration {
	if c.cfg.WriteTimeout > 0 {
		return c.cfg.WriteTimeout
	}
	return DefaultConfig().WriteTimeout
}
