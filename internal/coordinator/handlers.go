package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/flowstudio/internal/compiler"
	"github.com/alfredjeanlab/flowstudio/internal/protocol"
	"github.com/alfredjeanlab/flowstudio/internal/render"
	"github.com/alfredjeanlab/flowstudio/internal/transport"
)

// Initialize enters chat on the sessions flavor: it lists sessions and opens
// the remembered one, else the first, else the empty state with input
// disabled. On the studio flavor it only resets to design mode; chat starts
// with CompileRequested.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if c.flavor == protocol.FlavorStudio {
		c.DesignRequested()
		return nil
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.detachLocked()
	c.dir.Deactivate()
	c.mode = ModeChat
	c.inputEnabled = false
	c.resetLogLocked()
	c.commitLocked()
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}

	ids, listErr := c.dir.List(ctx)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.sessions = ids
	if listErr != nil {
		c.appendLocked(render.Failure(listErr.Error()))
	}
	target := c.dir.Resolve(ids)
	if target == "" {
		c.notice = ""
		c.appendLocked(render.Status(msgNoSessions))
		c.commitLocked()
		c.mu.Unlock()
		c.logger.Info("no sessions available")
		return reported(listErr)
	}
	c.commitLocked()
	c.mu.Unlock()

	if err := c.switchTo(ctx, target); err != nil {
		return err
	}
	return reported(listErr)
}

// SessionSelected makes id the active session: the log is replaced with its
// history and a connection to it is opened. Selecting the session that is
// already active does nothing.
func (c *Coordinator) SessionSelected(ctx context.Context, id string) error {
	if c.flavor == protocol.FlavorStudio {
		return ErrUnsupported
	}
	if id == "" {
		return ErrNoActiveSession
	}
	if id == c.dir.Active() {
		c.logger.Debug("session already active", "session", id)
		return nil
	}
	return c.switchTo(ctx, id)
}

// switchTo runs the switch flow: close the old connection, clear the log,
// fetch history, connect, refresh the session list.
func (c *Coordinator) switchTo(ctx context.Context, id string) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.detachLocked()
	c.dir.Activate(id)
	c.mode = ModeChat
	c.inputEnabled = false
	c.resetLogLocked()
	c.commitLocked()
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	c.logger.Info("switching session", "session", id, "generation", gen)

	msgs, histErr := c.dir.History(ctx, id)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale history", "session", id)
		return nil
	}
	if histErr != nil {
		c.appendLocked(render.Failure(histErr.Error()))
	}
	for _, m := range msgs {
		if e, ok := render.FromMessage(m); ok {
			c.appendLocked(e)
		}
	}
	c.notice = ""
	c.touchLocked()
	c.commitLocked()
	c.mu.Unlock()

	connErr := c.connect(ctx, gen, id)
	c.refreshSessions(ctx, gen)

	if connErr != nil {
		return connErr
	}
	return reported(histErr)
}

// connect opens the connection for generation gen.
func (c *Coordinator) connect(ctx context.Context, gen uint64, sessionID string) error {
	url, err := protocol.WebSocketURL(c.baseURL, c.flavor.Path(sessionID))
	if err != nil {
		return c.connectFailed(gen, err)
	}

	var tr *transport.Transport
	tr = transport.New(c.dialer, transport.Handlers{
		OnFrame: func(data []byte) { c.onFrame(gen, data) },
		OnClose: func(info transport.CloseInfo) { c.onClose(gen, tr, info) },
	}, transport.WithHeader(c.header), transport.WithLogger(c.logger))

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.tr = tr
	c.touchLocked()
	c.commitLocked()
	c.mu.Unlock()

	err = tr.ConnectTimeout(ctx, url)

	c.mu.Lock()
	if gen != c.gen || c.tr != tr {
		c.mu.Unlock()
		if err == nil {
			tr.Close()
		}
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, transport.ErrClosed) {
			return nil
		}
		return c.connectFailed(gen, err)
	}
	// A server close can land before this turn; only announce a live link.
	if tr.State() == transport.Open {
		msg := msgConnectedSession
		if c.flavor == protocol.FlavorStudio {
			msg = msgConnectedStudio
		}
		c.appendLocked(render.Status(msg))
		c.inputEnabled = true
	}
	c.commitLocked()
	c.mu.Unlock()
	c.logger.Info("session connected", "url", url)
	return nil
}

func (c *Coordinator) connectFailed(gen uint64, err error) error {
	terr := &TransportError{Op: "connect", Err: err}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.tr = nil
	c.inputEnabled = false
	if c.flavor == protocol.FlavorStudio {
		c.mode = ModeDesign
	}
	c.appendLocked(render.Failure("Could not connect: " + err.Error()))
	c.commitLocked()
	return reported(terr)
}

// refreshSessions reloads the session list unless gen went stale.
func (c *Coordinator) refreshSessions(ctx context.Context, gen uint64) {
	ids, err := c.dir.List(ctx)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.sessions = ids
	c.touchLocked()
	c.commitLocked()
}

// RefreshSessions reloads the session list without touching the live
// session.
func (c *Coordinator) RefreshSessions(ctx context.Context) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	ids, err := c.dir.List(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	if err != nil {
		c.appendLocked(render.Failure(err.Error()))
		c.commitLocked()
		return reported(err)
	}
	c.sessions = ids
	c.touchLocked()
	c.commitLocked()
	return nil
}

func (c *Coordinator) onFrame(gen uint64, data []byte) {
	ev, err := protocol.Decode(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.logger.Debug("dropping stale frame", "generation", gen)
		return
	}
	if err != nil {
		c.logger.Warn("undecodable frame", "error", err, "bytes", len(data))
		ch := c.change()
		ch.Appended = append(ch.Appended, c.log.Reject(data, err))
		c.commitLocked()
		return
	}
	hadPlaceholder := c.log.Pending()
	e, ok := c.log.Apply(ev)
	if ok {
		ch := c.change()
		ch.Appended = append(ch.Appended, e)
	} else if hadPlaceholder != c.log.Pending() {
		c.touchLocked()
	}
	c.commitLocked()
}

func (c *Coordinator) onClose(gen uint64, tr *transport.Transport, info transport.CloseInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.tr != tr {
		return
	}
	c.logger.Info("session connection closed", "initiator", info.Initiator, "code", info.Code, "reason", info.Reason)
	c.tr = nil
	c.inputEnabled = false
	if c.log.ClearPlaceholder() {
		c.touchLocked()
	}

	switch {
	case info.Initiator == transport.ClosedByServer && info.Code == 1000 && info.Reason == "":
		c.appendLocked(render.Status(msgClosed))
	default:
		reason := info.Reason
		if reason == "" {
			reason = info.String()
		}
		c.appendLocked(render.Failure("Connection closed unexpectedly. Reason: " + reason))
	}
	if c.flavor == protocol.FlavorStudio {
		c.mode = ModeDesign
		c.appendLocked(render.Status(msgDesignMode))
	}
	c.commitLocked()
}

// CompileRequested compiles the current graph and, when it is accepted,
// enters chat. A rejection leaves the mode unchanged and is returned as a
// *compiler.RejectedError.
func (c *Coordinator) CompileRequested(ctx context.Context) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	res := c.gateway.Compile(ctx, c.graph.Export())

	c.mu.Lock()
	c.compiled = res.Ready
	c.touchLocked()
	stale := gen != c.gen
	c.commitLocked()
	c.mu.Unlock()

	if !res.Ready {
		return res.Err()
	}
	if stale {
		c.logger.Debug("compile finished after navigation; staying put")
		return nil
	}
	return c.ChatRequested(ctx)
}

// ChatRequested enters chat with the last compiled workflow. On the studio
// flavor it opens the single workflow connection; on the sessions flavor it
// initializes the session directory.
func (c *Coordinator) ChatRequested(ctx context.Context) error {
	if c.flavor == protocol.FlavorSessions {
		return c.Initialize(ctx)
	}

	c.mu.Lock()
	if !c.compiled {
		c.mu.Unlock()
		return ErrNotCompiled
	}
	c.gen++
	gen := c.gen
	old := c.detachLocked()
	c.mode = ModeChat
	c.inputEnabled = false
	c.resetLogLocked()
	c.commitLocked()
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return c.connect(ctx, gen, "")
}

// DesignRequested leaves chat: the connection is closed and input disabled.
func (c *Coordinator) DesignRequested() {
	c.mu.Lock()
	c.gen++
	old := c.detachLocked()
	c.mode = ModeDesign
	c.inputEnabled = false
	c.log.ClearPlaceholder()
	if old != nil && c.flavor == protocol.FlavorStudio {
		c.appendLocked(render.Status(msgDesignMode))
	}
	c.touchLocked()
	c.commitLocked()
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// NewSession creates a session on the backend and switches to it.
func (c *Coordinator) NewSession(ctx context.Context) (string, error) {
	if c.flavor == protocol.FlavorStudio {
		return "", ErrUnsupported
	}
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	id, err := c.dir.Create(ctx)
	if err != nil {
		c.mu.Lock()
		if gen == c.gen {
			c.appendLocked(render.Failure(err.Error()))
			c.commitLocked()
		}
		c.mu.Unlock()
		return "", reported(err)
	}
	return id, c.switchTo(ctx, id)
}

// DeleteActiveSession deletes the active session and re-initializes, which
// selects a remaining session or enters the empty state.
func (c *Coordinator) DeleteActiveSession(ctx context.Context) error {
	if c.flavor == protocol.FlavorStudio {
		return ErrUnsupported
	}
	id := c.dir.Active()
	if id == "" {
		return ErrNoActiveSession
	}
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	if err := c.dir.Delete(ctx, id); err != nil {
		c.mu.Lock()
		if gen == c.gen {
			c.appendLocked(render.Failure(err.Error()))
			c.commitLocked()
		}
		c.mu.Unlock()
		return reported(err)
	}
	c.logger.Info("session deleted", "session", id)

	c.mu.Lock()
	c.notice = fmt.Sprintf(msgSessionDeleted, shortID(id))
	c.mu.Unlock()
	err := c.Initialize(ctx)
	c.mu.Lock()
	c.notice = ""
	c.mu.Unlock()
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// MessageSubmitted sends a user query over the live connection. The sessions
// flavor echoes the query locally; both flavors show an awaiting-response
// placeholder until the first reply frame.
func (c *Coordinator) MessageSubmitted(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	tr := c.tr
	if !c.inputEnabled || tr == nil {
		c.mu.Unlock()
		return ErrInputDisabled
	}
	gen := c.gen
	if c.flavor == protocol.FlavorSessions {
		c.appendLocked(render.UserMessage(text))
	}
	if !c.log.Pending() {
		p := c.log.Submit()
		ch := c.change()
		ch.Appended = append(ch.Appended, p)
	}
	c.commitLocked()
	c.mu.Unlock()

	if err := tr.Send(c.flavor.EncodeQuery(text)); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen {
			return nil
		}
		c.log.ClearPlaceholder()
		c.inputEnabled = false
		c.appendLocked(render.Failure("Failed to send message: " + err.Error()))
		c.commitLocked()
		return reported(&TransportError{Op: "send", Err: err})
	}
	return nil
}

// Compile runs the compile gateway on the current graph without changing
// mode.
func (c *Coordinator) Compile(ctx context.Context) compiler.Result {
	return c.gateway.Compile(ctx, c.graph.Export())
}
