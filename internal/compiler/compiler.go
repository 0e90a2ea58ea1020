// Package compiler submits workflow graphs to the remote compile endpoint and
// maps the outcome to a Ready or Rejected result.
package compiler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/alfredjeanlab/flowstudio/internal/client"
	"github.com/alfredjeanlab/flowstudio/internal/graph"
	"github.com/alfredjeanlab/flowstudio/internal/model"
)

// UnknownReason replaces an empty rejection reason from the server.
const UnknownReason = "unknown compilation error"

// Result is the outcome of one compile attempt.
type Result struct {
	Ready  bool
	Reason string // set when !Ready
}

// Ready is the successful result.
func Ready() Result { return Result{Ready: true} }

// Rejected builds a failed result. An empty reason is replaced by UnknownReason.
func Rejected(reason string) Result {
	if strings.TrimSpace(reason) == "" {
		reason = UnknownReason
	}
	return Result{Reason: reason}
}

// Err converts a rejection into a *RejectedError, or nil when ready.
func (r Result) Err() error {
	if r.Ready {
		return nil
	}
	return &RejectedError{Reason: r.Reason}
}

// RejectedError carries a compile rejection reason verbatim.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "compile rejected: " + e.Reason }

// Compiler is the subset of the backend client the gateway needs.
type Compiler interface {
	CompileWorkflow(ctx context.Context, g model.Graph) error
}

// Gateway serializes compile requests: at most one is in flight, and
// concurrent callers are served in arrival order.
type Gateway struct {
	backend Compiler
	logger  *slog.Logger

	// queue is a one-slot semaphore; a buffered channel hands the slot to
	// waiters in the order they blocked.
	queue chan struct{}

	mu       sync.Mutex
	inFlight bool
}

// New creates a gateway. A nil logger falls back to slog.Default().
func New(backend Compiler, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		backend: backend,
		logger:  logger,
		queue:   make(chan struct{}, 1),
	}
}

// InFlight reports whether a compile is currently running.
func (g *Gateway) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Compile posts the graph to the compile endpoint. Transport failures and
// server rejections are both reported as Rejected; there is no retry.
// Lint warnings are logged and never block the compile.
func (g *Gateway) Compile(ctx context.Context, wf model.Graph) Result {
	select {
	case g.queue <- struct{}{}:
	case <-ctx.Done():
		return Rejected(ctx.Err().Error())
	}
	g.setInFlight(true)
	defer func() {
		g.setInFlight(false)
		<-g.queue
	}()

	for _, w := range graph.Lint(wf) {
		g.logger.Warn("workflow lint", "kind", w.Kind, "nodes", w.NodeIDs, "msg", w.Msg)
	}

	err := g.backend.CompileWorkflow(ctx, wf)
	if err == nil {
		g.logger.Info("workflow compiled", "nodes", len(wf.Nodes), "edges", len(wf.Edges))
		return Ready()
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		g.logger.Info("workflow rejected", "status", apiErr.StatusCode, "reason", apiErr.Message)
		return Rejected(apiErr.Message)
	}
	g.logger.Warn("compile request failed", "error", err)
	return Rejected(err.Error())
}

func (g *Gateway) setInFlight(v bool) {
	g.mu.Lock()
	g.inFlight = v
	g.mu.Unlock()
}
