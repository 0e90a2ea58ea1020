// Package transport manages the single live session connection: a
// Disconnected -> Connecting -> Open -> Disconnected state machine over a
// WebSocket, with in-order frame delivery and exactly-once close reporting.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrNotOpen is returned by Send when the transport is not Open. Nothing
	// is written or queued.
	ErrNotOpen = errors.New("transport not open")
	// ErrActive is returned by Connect when the transport is not Disconnected.
	ErrActive = errors.New("transport already connecting or open")
	// ErrClosed is returned by Connect when Close was called while dialing.
	ErrClosed = errors.New("transport closed while connecting")
)

// Conn is the subset of *websocket.Conn the transport uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Conn.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebSocketDialer adapts a gorilla *websocket.Dialer to Dialer.
type WebSocketDialer struct {
	Dialer *websocket.Dialer
}

// DefaultDialer dials with gorilla's default settings.
func DefaultDialer() WebSocketDialer {
	return WebSocketDialer{Dialer: websocket.DefaultDialer}
}

func (d WebSocketDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// Initiator says who ended a connection.
type Initiator string

const (
	ClosedByUser   Initiator = "user"
	ClosedByServer Initiator = "server"
	ClosedByError  Initiator = "error"
)

// CloseInfo describes why an Open transport went back to Disconnected.
type CloseInfo struct {
	Initiator Initiator
	Code      int    // WebSocket close code when the server sent one
	Reason    string // close text, or the error message
	Err       error
}

func (c CloseInfo) String() string {
	switch {
	case c.Reason != "":
		return fmt.Sprintf("closed by %s: %s", c.Initiator, c.Reason)
	case c.Code != 0:
		return fmt.Sprintf("closed by %s (code %d)", c.Initiator, c.Code)
	}
	return "closed by " + string(c.Initiator)
}

// Unexpected reports whether the close was not requested by the user.
func (c CloseInfo) Unexpected() bool { return c.Initiator != ClosedByUser }

// Handlers receive transport callbacks. OnFrame is called sequentially from
// a single reader goroutine, in arrival order. OnClose is called exactly once
// per Open connection, on its own goroutine, so it may take locks held by the
// caller of Close or Send.
type Handlers struct {
	OnFrame func(data []byte)
	OnClose func(CloseInfo)
}

// link is one dialed connection.
type link struct {
	conn    Conn
	writeMu sync.Mutex
	once    sync.Once
}

// Transport is a single-connection session transport. Callers that switch
// sessions close the old Transport and connect a new one.
type Transport struct {
	dialer   Dialer
	handlers Handlers
	header   http.Header
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	link    *link
	url     string
	attempt uint64 // bumped by every Connect and by Close while Connecting
}

// Option configures a Transport.
type Option func(*Transport)

// WithHeader sets handshake headers, e.g. Authorization.
func WithHeader(h http.Header) Option {
	return func(t *Transport) { t.header = h.Clone() }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// New creates a Disconnected transport.
func New(dialer Dialer, h Handlers, opts ...Option) *Transport {
	t := &Transport{dialer: dialer, handlers: h, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// URL returns the target of the current or last connection.
func (t *Transport) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

// Connect dials url and starts the reader. It is only valid from
// Disconnected. A failed dial leaves the transport Disconnected and does not
// invoke OnClose.
func (t *Transport) Connect(ctx context.Context, url string) error {
	t.mu.Lock()
	if t.state != Disconnected {
		t.mu.Unlock()
		return ErrActive
	}
	t.state = Connecting
	t.url = url
	t.attempt++
	attempt := t.attempt
	t.mu.Unlock()

	conn, err := t.dialer.DialContext(ctx, url, t.header)

	t.mu.Lock()
	if t.attempt != attempt || t.state != Connecting {
		// Close ran while dialing.
		t.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		t.state = Disconnected
		t.mu.Unlock()
		t.logger.Warn("transport connect failed", "url", url, "error", err)
		return err
	}
	l := &link{conn: conn}
	t.link = l
	t.state = Open
	t.mu.Unlock()

	t.logger.Debug("transport open", "url", url)
	go t.read(l)
	return nil
}

// Send writes one text frame. It returns ErrNotOpen without touching the
// network unless the transport is Open. A write failure closes the
// connection and is reported through OnClose as well as returned.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	if t.state != Open {
		t.mu.Unlock()
		return ErrNotOpen
	}
	l := t.link
	t.mu.Unlock()

	l.writeMu.Lock()
	err := l.conn.WriteMessage(websocket.TextMessage, data)
	l.writeMu.Unlock()
	if err != nil {
		t.finish(l, CloseInfo{Initiator: ClosedByError, Reason: err.Error(), Err: err})
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close ends the connection. It does not wait for the server's
// acknowledgment. Closing a Disconnected transport is a no-op; closing while
// Connecting abandons the dial.
func (t *Transport) Close() {
	t.mu.Lock()
	switch t.state {
	case Disconnected:
		t.mu.Unlock()
		return
	case Connecting:
		t.state = Disconnected
		t.attempt++
		t.mu.Unlock()
		return
	}
	l := t.link
	t.mu.Unlock()

	l.writeMu.Lock()
	_ = l.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	l.writeMu.Unlock()
	t.finish(l, CloseInfo{Initiator: ClosedByUser, Code: websocket.CloseNormalClosure})
}

func (t *Transport) read(l *link) {
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			t.finish(l, closeInfo(err))
			return
		}
		if t.current(l) && t.handlers.OnFrame != nil {
			t.handlers.OnFrame(data)
		}
	}
}

// current reports whether l is still the live link.
func (t *Transport) current(l *link) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.link == l && t.state == Open
}

// finish retires l and fires OnClose once for it.
func (t *Transport) finish(l *link, info CloseInfo) {
	l.once.Do(func() {
		t.mu.Lock()
		if t.link == l {
			t.link = nil
			t.state = Disconnected
		}
		t.mu.Unlock()

		_ = l.conn.Close()
		t.logger.Debug("transport closed", "initiator", info.Initiator, "code", info.Code, "reason", info.Reason)
		if t.handlers.OnClose != nil {
			go t.handlers.OnClose(info)
		}
	})
}

func closeInfo(err error) CloseInfo {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return CloseInfo{Initiator: ClosedByServer, Code: ce.Code, Reason: ce.Text, Err: err}
	}
	return CloseInfo{Initiator: ClosedByError, Reason: err.Error(), Err: err}
}

// HandshakeTimeout bounds the dial when the caller's context has no deadline.
const HandshakeTimeout = 10 * time.Second

// ConnectTimeout is Connect with HandshakeTimeout applied.
func (t *Transport) ConnectTimeout(ctx context.Context, url string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, HandshakeTimeout)
		defer cancel()
	}
	return t.Connect(ctx, url)
}
