package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error checking via errors.Is().
var (
	// ErrDuplicateEntryPoint indicates a second User node was requested.
	ErrDuplicateEntryPoint = errors.New("graph already has a user entry point")

	// ErrNodeNotFound indicates an operation referenced an unknown node id.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates RemoveEdge found no matching edge.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrEdgeIntoEntryPoint indicates an edge targeting the User node.
	ErrEdgeIntoEntryPoint = errors.New("user node cannot have inbound edges")

	// ErrEdgeFromLeaf indicates an edge leaving a Tool or MCP node.
	ErrEdgeFromLeaf = errors.New("tool and mcp nodes cannot have outbound edges")

	// ErrDuplicateNodeID indicates an imported graph reuses a node id.
	ErrDuplicateNodeID = errors.New("duplicate node id")
)

// NodeError attaches the offending node id to a sentinel error.
type NodeError struct {
	ID  string
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err.Error(), e.ID)
}

func (e *NodeError) Unwrap() error { return e.Err }
