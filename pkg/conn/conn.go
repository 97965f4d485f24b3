package conn

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/lens/internal/errors"
)

// State is the lifecycle state of a Conn.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// closeGrace bounds how long Close waits for the peer's close reply.
const closeGrace = time.Second

// Handler receives one inbound binary payload. It runs on the connection's
// read goroutine; the next frame is not read until it returns.
type Handler func(ctx context.Context, payload []byte)

// Channel is what a page needs from its connection: a way to send one
// binary frame and a view of the lifecycle.
type Channel interface {
	Send(ctx context.Context, payload []byte) error
	State() State
}

// Conn is a single client WebSocket connection.
type Conn struct {
	cfg       *Config
	logger    *slog.Logger
	onMessage Handler

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards transitions, the pending queue and ws.
	// Lock order: mu before writeMu.
	mu      sync.Mutex
	state   atomic.Int32
	pending [][]byte
	ws      *websocket.Conn
	err     error

	writeMu sync.Mutex

	opened     chan struct{}
	readDone   chan struct{}
	done       chan struct{}
	finishOnce sync.Once
}

var _ Channel = (*Conn)(nil)

// Open starts connecting to cfg.URL and returns immediately in the
// Connecting state. onMessage may be nil.
func Open(ctx context.Context, cfg *Config, onMessage Handler) *Conn {
	cfg = cfg.withDefaults()
	cctx, cancel := context.WithCancel(ctx)

	c := &Conn{
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "conn", "url", cfg.URL),
		onMessage: onMessage,
		ctx:       cctx,
		cancel:    cancel,
		opened:    make(chan struct{}),
		readDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.setState(StateConnecting)

	go c.connect()
	return c
}

// URL returns the endpoint this connection was opened to.
func (c *Conn) URL() string {
	return c.cfg.URL
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Done is closed once the connection reaches Closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that closed the connection, or nil while it is
// alive or after a clean Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Pending returns the number of payloads waiting for the connection to open.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// WaitOpen blocks until the connection is open, has closed, or ctx ends.
func (c *Conn) WaitOpen(ctx context.Context) error {
	select {
	case <-c.opened:
		if c.State() == StateOpen {
			return nil
		}
		return c.closedErr()
	case <-c.done:
		return c.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send transmits payload as one binary frame.
//
// While Connecting the payload is queued or rejected according to the
// policy; a queued payload is copied and Send returns nil. While Open the
// frame is written before Send returns. After Close, Send fails with
// errors.ErrClosed.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	switch c.State() {
	case StateConnecting:
		if c.cfg.Policy == RejectUntilOpen {
			c.mu.Unlock()
			return errors.New("L010").
				WithSuggestion("Wait for the connection to open or use the queue send policy")
		}
		if len(c.pending) >= c.cfg.MaxQueue {
			c.mu.Unlock()
			return errors.New("L012")
		}
		c.pending = append(c.pending, append([]byte(nil), payload...))
		depth := len(c.pending)
		c.mu.Unlock()

		c.cfg.Metrics.SetQueueDepth(depth)
		c.logger.Debug("send queued until open", "bytes", len(payload), "depth", depth)
		return nil

	case StateOpen:
		ws := c.ws
		c.mu.Unlock()

		if err := c.write(ws, payload); err != nil {
			c.cfg.Metrics.RecordWebSocketError("write")
			sendErr := errors.New("L014").Wrap(err)
			c.fail(sendErr)
			return sendErr
		}
		return nil

	default:
		c.mu.Unlock()
		return c.closedErr()
	}
}

// Close sends a close frame, waits briefly for the peer and releases the
// connection. Pending sends are dropped. Close is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	st := c.State()
	if st == StateClosing || st == StateClosed {
		c.mu.Unlock()
		return nil
	}

	dropped := len(c.pending)
	c.pending = nil
	ws := c.ws

	if ws == nil {
		// Still dialing: cancelling the context aborts the handshake.
		c.setState(StateClosed)
		c.mu.Unlock()
		c.dropQueued(dropped)
		c.finish()
		c.logger.Info("closed while connecting")
		return nil
	}

	c.setState(StateClosing)
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
	if err == websocket.ErrCloseSent {
		err = nil
	}

	select {
	case <-c.readDone:
	case <-time.After(closeGrace):
	}

	ws.Close()

	c.mu.Lock()
	c.setState(StateClosed)
	c.mu.Unlock()
	c.finish()

	c.logger.Info("closed")
	return err
}

// connect performs the opening handshake and, on success, flushes the
// queue and starts the read and heartbeat loops.
func (c *Conn) connect() {
	dialCtx, cancel := context.WithTimeout(c.ctx, c.cfg.DialTimeout)
	defer cancel()

	ws, resp, err := c.cfg.Dialer.DialContext(dialCtx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.cfg.Metrics.RecordWebSocketError("dial")
		c.fail(errors.New("L013").
			WithDetail("Could not open " + c.cfg.URL).
			WithSuggestion("Check endpoint.url or enable endpoint.discover").
			Wrap(err))
		return
	}
	ws.SetReadLimit(c.cfg.MaxMessageSize)

	c.mu.Lock()
	if c.State() != StateConnecting {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws

	// Flush while holding mu so no Send can overtake a queued payload.
	pending := c.pending
	c.pending = nil
	for i, p := range pending {
		if err := c.write(ws, p); err != nil {
			c.mu.Unlock()
			c.cfg.Metrics.RecordWebSocketError("write")
			c.dropQueued(len(pending) - i)
			c.fail(errors.New("L014").Wrap(err))
			return
		}
	}

	c.setState(StateOpen)
	close(c.opened)
	c.mu.Unlock()

	c.cfg.Metrics.SetQueueDepth(0)
	c.logger.Info("connection open", "flushed", len(pending))

	go c.readLoop(ws)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(ws)
	}
}

// readLoop delivers binary frames to the handler until the connection ends.
func (c *Conn) readLoop(ws *websocket.Conn) {
	defer close(c.readDone)

	var readTimeout time.Duration
	if c.cfg.PingInterval > 0 {
		readTimeout = 2 * c.cfg.PingInterval
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	for {
		mt, msg, err := ws.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if readTimeout > 0 {
			ws.SetReadDeadline(time.Now().Add(readTimeout))
		}

		if mt != websocket.BinaryMessage {
			c.logger.Warn("dropping non-binary message", "type", mt, "bytes", len(msg))
			continue
		}

		c.cfg.Metrics.RecordMessage(len(msg))
		if c.onMessage != nil {
			c.onMessage(c.ctx, msg)
		}
	}
}

func (c *Conn) handleReadError(err error) {
	// Close owns the transition once it has started.
	if st := c.State(); st == StateClosing || st == StateClosed {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("server closed connection", "reason", err)
	} else {
		c.cfg.Metrics.RecordWebSocketError("read")
		c.logger.Error("read error", "error", err)
	}
	c.fail(errors.New("L011").Wrap(err))
}

// pingLoop sends heartbeat pings until the connection ends.
func (c *Conn) pingLoop(ws *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.cfg.Metrics.RecordWebSocketError("ping")
				c.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

// write sends one binary frame. Callers must not hold writeMu.
func (c *Conn) write(ws *websocket.Conn, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return ws.WriteMessage(websocket.BinaryMessage, payload)
}

// fail moves the connection to Closed because of err.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.State() == StateClosed {
		c.mu.Unlock()
		return
	}
	dropped := len(c.pending)
	c.pending = nil
	c.err = err
	ws := c.ws
	c.setState(StateClosed)
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
	c.dropQueued(dropped)
	c.logger.Error("connection closed with error", "error", err)
	c.finish()
}

func (c *Conn) dropQueued(n int) {
	if n <= 0 {
		return
	}
	c.cfg.Metrics.RecordQueuedDropped(n)
	c.cfg.Metrics.SetQueueDepth(0)
	c.logger.Warn("dropped queued sends", "count", n)
}

// setState must be called with mu held.
func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
	c.cfg.Metrics.SetConnectionState(int(s))
}

func (c *Conn) finish() {
	c.finishOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

func (c *Conn) closedErr() error {
	if err := c.Err(); err != nil {
		return err
	}
	return errors.New("L011")
}
