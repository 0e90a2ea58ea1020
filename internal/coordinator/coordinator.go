// Package coordinator ties the workflow graph, the compiler gateway, the
// session directory and the single live session connection together.
//
// Every command handler runs as one serialized turn under the coordinator's
// mutex. Network calls happen outside the turn; each async result carries
// the generation that was current when the call started and is discarded if
// the generation has moved on (a session switch, a return to design mode, a
// re-initialization). Observers receive state snapshots in turn order on a
// dedicated goroutine.
package coordinator

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/alfredjeanlab/flowstudio/internal/compiler"
	"github.com/alfredjeanlab/flowstudio/internal/directory"
	"github.com/alfredjeanlab/flowstudio/internal/events"
	"github.com/alfredjeanlab/flowstudio/internal/graph"
	"github.com/alfredjeanlab/flowstudio/internal/protocol"
	"github.com/alfredjeanlab/flowstudio/internal/render"
	"github.com/alfredjeanlab/flowstudio/internal/transport"
)

// Mode is the authoring surface the user is in.
type Mode string

const (
	ModeDesign Mode = "design"
	ModeChat   Mode = "chat"
)

// Status texts shown in the log.
const (
	msgConnectedSession = "Connected to session."
	msgConnectedStudio  = "Connection established. Ready to chat."
	msgClosed           = "Connection closed."
	msgDesignMode       = "Disconnected. Entering Design Mode."
	msgNoSessions       = "Start a new conversation to begin."
	msgSessionDeleted   = "Session %s deleted."
)

// Backend is what the coordinator needs from the studio backend. It is
// implemented by client.HTTPClient.
type Backend interface {
	directory.Backend
	compiler.Compiler
}

// State is a snapshot of everything a rendering surface needs.
type State struct {
	Flavor        protocol.Flavor
	Mode          Mode
	ActiveSession string
	Sessions      []string
	Entries       []render.Entry
	InputEnabled  bool
	Connection    transport.State
	Compiled      bool
	Generation    uint64
}

// Change is delivered to observers after each turn that changed state.
type Change struct {
	State State
	// Appended lists entries added by this turn, in order.
	Appended []render.Entry
	// Reset is set when the log was cleared before Appended were added.
	Reset bool
}

// Options configures a Coordinator.
type Options struct {
	Flavor protocol.Flavor
	// BaseURL is the backend's http(s) URL; session connections are derived
	// from it.
	BaseURL   string
	Header    http.Header // WebSocket handshake headers
	Dialer    transport.Dialer
	Memory    directory.Memory
	Graph     *graph.Editor
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Coordinator is the session coordinator.
type Coordinator struct {
	flavor    protocol.Flavor
	baseURL   string
	header    http.Header
	dialer    transport.Dialer
	logger    *slog.Logger
	publisher events.Publisher

	graph   *graph.Editor
	gateway *compiler.Gateway
	dir     *directory.Directory

	mu           sync.Mutex
	mode         Mode
	gen          uint64
	tr           *transport.Transport
	log          *render.Log
	inputEnabled bool
	compiled     bool
	sessions     []string
	notice       string  // status re-added after each log reset until the switch settles
	pending      *Change // changes accumulated by the current turn

	obsMu     sync.Mutex
	observers map[int]func(Change)
	nextObs   int

	outMu   sync.Mutex
	outbox  []Change
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	closeMu sync.Once
}

// New creates a coordinator in design mode.
func New(backend Backend, opts Options) *Coordinator {
	if opts.Flavor == "" {
		opts.Flavor = protocol.FlavorSessions
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dialer == nil {
		opts.Dialer = transport.DefaultDialer()
	}
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.Graph == nil {
		opts.Graph = graph.DefaultWorkflow()
	}
	c := &Coordinator{
		flavor:    opts.Flavor,
		baseURL:   opts.BaseURL,
		header:    opts.Header,
		dialer:    opts.Dialer,
		logger:    opts.Logger.With("component", "coordinator"),
		publisher: opts.Publisher,
		graph:     opts.Graph,
		gateway:   compiler.New(backend, opts.Logger),
		dir:       directory.New(backend, opts.Memory, opts.Logger),
		mode:      ModeDesign,
		log:       render.NewLog(),
		sessions:  []string{},
		observers: make(map[int]func(Change)),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Graph returns the editor for the workflow being authored.
func (c *Coordinator) Graph() *graph.Editor { return c.graph }

// Flavor returns the server flavor.
func (c *Coordinator) Flavor() protocol.Flavor { return c.flavor }

// State returns a snapshot of the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for state changes. Calls are sequential and in turn
// order, on a goroutine owned by the coordinator. The returned function
// unsubscribes.
func (c *Coordinator) Subscribe(fn func(Change)) func() {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()
	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

// Close drops the live connection and stops change delivery after draining
// changes already queued. The publisher is left open for its owner.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.gen++
	old := c.detachLocked()
	c.inputEnabled = false
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	c.closeMu.Do(func() { close(c.stop) })
	<-c.stopped
}

func (c *Coordinator) snapshotLocked() State {
	conn := transport.Disconnected
	if c.tr != nil {
		conn = c.tr.State()
	}
	return State{
		Flavor:        c.flavor,
		Mode:          c.mode,
		ActiveSession: c.dir.Active(),
		Sessions:      slices.Clone(c.sessions),
		Entries:       c.log.Entries(),
		InputEnabled:  c.inputEnabled,
		Connection:    conn,
		Compiled:      c.compiled,
		Generation:    c.gen,
	}
}

// detachLocked forgets the live transport and returns it so the caller can
// close it after releasing the lock.
func (c *Coordinator) detachLocked() *transport.Transport {
	old := c.tr
	c.tr = nil
	return old
}

// Turn bookkeeping. Mutations inside a turn record what they did through
// these helpers; commitLocked queues one Change for observers.

func (c *Coordinator) change() *Change {
	if c.pending == nil {
		c.pending = &Change{}
	}
	return c.pending
}

func (c *Coordinator) appendLocked(e render.Entry) {
	c.log.Append(e)
	ch := c.change()
	ch.Appended = append(ch.Appended, e)
}

func (c *Coordinator) resetLogLocked() {
	c.log.Reset()
	ch := c.change()
	ch.Reset = true
	ch.Appended = nil
	if c.notice != "" {
		c.appendLocked(render.Status(c.notice))
	}
}

func (c *Coordinator) touchLocked() { c.change() }

func (c *Coordinator) commitLocked() {
	if c.pending == nil {
		return
	}
	ch := *c.pending
	c.pending = nil
	ch.State = c.snapshotLocked()

	c.outMu.Lock()
	c.outbox = append(c.outbox, ch)
	c.outMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers queued changes to observers and the publisher.
func (c *Coordinator) dispatch() {
	defer close(c.stopped)
	for {
		select {
		case <-c.wake:
			c.drain()
		case <-c.stop:
			c.drain()
			return
		}
	}
}

func (c *Coordinator) drain() {
	for {
		c.outMu.Lock()
		batch := c.outbox
		c.outbox = nil
		c.outMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, ch := range batch {
			c.deliver(ch)
		}
	}
}

func (c *Coordinator) deliver(ch Change) {
	c.obsMu.Lock()
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.observers[id])
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
	c.publish(ch)
}

func (c *Coordinator) publish(ch Change) {
	ctx := context.Background()
	s := ch.State
	for _, e := range ch.Appended {
		ev := events.EntryAppended{SessionID: s.ActiveSession, Generation: s.Generation, Entry: e}
		if err := c.publisher.Publish(ctx, events.EntryTopic(s.ActiveSession), ev); err != nil {
			c.logger.Warn("publish entry failed", "error", err)
		}
	}
	state := events.StateChanged{
		Flavor:        string(s.Flavor),
		Mode:          string(s.Mode),
		ActiveSession: s.ActiveSession,
		Sessions:      s.Sessions,
		InputEnabled:  s.InputEnabled,
		Connection:    s.Connection.String(),
		Compiled:      s.Compiled,
		Generation:    s.Generation,
		LogReset:      ch.Reset,
	}
	if err := c.publisher.Publish(ctx, events.TopicCoordinatorState, state); err != nil {
		c.logger.Warn("publish state failed", "error", err)
	}
}
