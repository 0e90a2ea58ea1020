// Package graph implements the author-time workflow graph: typed nodes,
// directed edges and the invariants the authoring surface enforces before
// anything is sent to the compiler.
//
// Invariants:
//   - at most one User node (the entry point)
//   - User nodes have no inbound edges
//   - Tool and MCP nodes have no outbound edges
//   - every edge references existing nodes; removing a node removes its edges
//
// Deeper checks (reachability, tool schema conformance, required fields) are
// left to the remote compiler. Lint reports cycles and unreachable nodes as
// non-blocking warnings.
package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/alfredjeanlab/flowstudio/internal/model"
	"github.com/google/uuid"
)

// NewID returns a fresh node id.
func NewID() string { return uuid.NewString() }

type node struct {
	id    string
	label string
	typ   model.NodeType
	cfg   model.NodeConfig
}

// Editor owns a mutable workflow graph. All mutations validate first and
// apply nothing on failure.
type Editor struct {
	mu    sync.RWMutex
	nodes []*node
	byID  map[string]*node
	edges []model.Edge
}

// New returns an empty editor.
func New() *Editor {
	return &Editor{byID: make(map[string]*node)}
}

// DefaultWorkflow returns an editor holding the starter graph: a User entry
// point connected to a single agent.
func DefaultWorkflow() *Editor {
	e := New()
	userID, _ := e.AddNode(model.NodeUser, "User")
	agentID, _ := e.AddNode(model.NodeAgent, "DefaultAgent")
	_ = e.UpdateNodeData(agentID, map[string]any{
		model.KeySystemMessage: "You are a helpful assistant.",
	})
	_ = e.AddEdge(userID, agentID)
	return e
}

// CanAddNode reports whether a node of type t may be added. Callers use it
// to disable the "add user" action once an entry point exists.
func (e *Editor) CanAddNode(t model.NodeType) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return t.IsValid() && !(t == model.NodeUser && e.hasEntryPointLocked())
}

// AddNode adds a node of type t with its default configuration and returns
// the new node id.
func (e *Editor) AddNode(t model.NodeType, label string) (string, error) {
	if !t.IsValid() {
		return "", &model.ValidationError{Errors: []model.FieldError{{
			Field: "type", Message: fmt.Sprintf("invalid value %q", t),
		}}}
	}
	if err := model.ValidateLabel(label); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if t == model.NodeUser && e.hasEntryPointLocked() {
		return "", ErrDuplicateEntryPoint
	}
	n := &node{
		id:    NewID(),
		label: strings.TrimSpace(label),
		typ:   t,
		cfg:   model.DefaultConfig(t, strings.TrimSpace(label)),
	}
	e.insertLocked(n)
	return n.id, nil
}

// RemoveNode deletes a node and every edge whose source or target is that node.
func (e *Editor) RemoveNode(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.byID[id]; !ok {
		return &NodeError{ID: id, Err: ErrNodeNotFound}
	}
	e.nodes = slices.DeleteFunc(e.nodes, func(n *node) bool { return n.id == id })
	delete(e.byID, id)
	e.edges = slices.DeleteFunc(e.edges, func(ed model.Edge) bool {
		return ed.Source == id || ed.Target == id
	})
	return nil
}

// UpdateNodeData merges partial into the node's configuration. The special
// key "label" renames the node. The merged node must be well formed, but may
// still lack fields the compiler requires; Lint reports those.
func (e *Editor) UpdateNodeData(id string, partial map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.byID[id]
	if !ok {
		return &NodeError{ID: id, Err: ErrNodeNotFound}
	}

	label := n.label
	rest := maps.Clone(partial)
	if v, ok := rest["label"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return &model.ValidationError{Errors: []model.FieldError{{Field: "label", Message: "must be a string"}}}
		}
		label = strings.TrimSpace(s)
		delete(rest, "label")
	}

	cfg, err := model.MergeConfig(n.cfg, rest)
	if err != nil {
		return err
	}
	if err := model.ValidateNode(label, n.typ, cfg); err != nil {
		return err
	}
	n.label = label
	n.cfg = cfg
	return nil
}

// AddEdge connects source to target. Parallel edges are allowed.
func (e *Editor) AddEdge(source, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addEdgeLocked(model.Edge{Source: source, Target: target})
}

// RemoveEdge deletes the first edge from source to target.
func (e *Editor) RemoveEdge(source, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := slices.Index(e.edges, model.Edge{Source: source, Target: target})
	if i < 0 {
		return fmt.Errorf("%w: %s -> %s", ErrEdgeNotFound, source, target)
	}
	e.edges = slices.Delete(e.edges, i, i+1)
	return nil
}

// Node returns the wire form of one node.
func (e *Editor) Node(id string) (model.Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.byID[id]
	if !ok {
		return model.Node{}, false
	}
	return n.wire(), true
}

// Config returns the typed configuration of one node.
func (e *Editor) Config(id string) (model.NodeConfig, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.byID[id]
	if !ok {
		return nil, false
	}
	return n.cfg, true
}

// Len returns the number of nodes.
func (e *Editor) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.nodes)
}

// Export returns a deep copy of the graph. Calling it twice without an
// intervening mutation yields structurally identical values.
func (e *Editor) Export() model.Graph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g := model.Graph{
		Nodes: make([]model.Node, 0, len(e.nodes)),
		Edges: make([]model.Edge, len(e.edges)),
	}
	for _, n := range e.nodes {
		g.Nodes = append(g.Nodes, n.wire())
	}
	copy(g.Edges, e.edges)
	return g
}

// Import builds an editor from an exported graph, enforcing the same
// invariants as the mutating operations. Node configurations are decoded
// but not required to be complete.
func Import(g model.Graph) (*Editor, error) {
	e := New()
	for _, wn := range g.Nodes {
		if wn.ID == "" {
			return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "id", Message: "is required"}}}
		}
		if _, dup := e.byID[wn.ID]; dup {
			return nil, &NodeError{ID: wn.ID, Err: ErrDuplicateNodeID}
		}
		if !wn.Type.IsValid() {
			return nil, &model.ValidationError{Errors: []model.FieldError{{
				Field: "type", Message: fmt.Sprintf("invalid value %q", wn.Type),
			}}}
		}
		if err := model.ValidateLabel(wn.Label); err != nil {
			return nil, err
		}
		if wn.Type == model.NodeUser && e.hasEntryPointLocked() {
			return nil, ErrDuplicateEntryPoint
		}
		cfg, err := model.DecodeConfig(wn.Type, wn.Config)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", wn.ID, err)
		}
		e.insertLocked(&node{id: wn.ID, label: strings.TrimSpace(wn.Label), typ: wn.Type, cfg: cfg})
	}
	for _, ed := range g.Edges {
		if err := e.addEdgeLocked(ed); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Editor) insertLocked(n *node) {
	e.nodes = append(e.nodes, n)
	e.byID[n.id] = n
}

func (e *Editor) hasEntryPointLocked() bool {
	for _, n := range e.nodes {
		if n.typ == model.NodeUser {
			return true
		}
	}
	return false
}

func (e *Editor) addEdgeLocked(ed model.Edge) error {
	src, ok := e.byID[ed.Source]
	if !ok {
		return &NodeError{ID: ed.Source, Err: ErrNodeNotFound}
	}
	dst, ok := e.byID[ed.Target]
	if !ok {
		return &NodeError{ID: ed.Target, Err: ErrNodeNotFound}
	}
	if !dst.typ.AcceptsInbound() {
		return &NodeError{ID: ed.Target, Err: ErrEdgeIntoEntryPoint}
	}
	if !src.typ.AllowsOutbound() {
		return &NodeError{ID: ed.Source, Err: ErrEdgeFromLeaf}
	}
	e.edges = append(e.edges, ed)
	return nil
}

func (n *node) wire() model.Node {
	return model.Node{
		ID:     n.id,
		Label:  n.label,
		Type:   n.typ,
		Config: n.cfg.Payload(),
	}
}
