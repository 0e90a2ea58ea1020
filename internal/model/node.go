package model

// NodeType classifies a node in a workflow graph. The set is closed.
type NodeType string

const (
	NodeUser       NodeType = "user"
	NodeSupervisor NodeType = "supervisor"
	NodeAgent      NodeType = "agent"
	NodeTool       NodeType = "tool"
	NodeMCP        NodeType = "mcp"
)

// NodeTypes lists every node type in palette order.
var NodeTypes = []NodeType{NodeUser, NodeSupervisor, NodeAgent, NodeTool, NodeMCP}

// String returns the string representation of the node type.
func (t NodeType) String() string {
	return string(t)
}

// IsValid checks whether the node type is a known value.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeUser, NodeSupervisor, NodeAgent, NodeTool, NodeMCP:
		return true
	}
	return false
}

// Title returns the display name used for default labels and badges.
func (t NodeType) Title() string {
	switch t {
	case NodeUser:
		return "User"
	case NodeSupervisor:
		return "Supervisor"
	case NodeAgent:
		return "Agent"
	case NodeTool:
		return "Tool"
	case NodeMCP:
		return "MCP"
	}
	return string(t)
}

// AcceptsInbound reports whether edges may target a node of this type.
// The User node is the entry point and never has inbound edges.
func (t NodeType) AcceptsInbound() bool {
	return t != NodeUser
}

// AllowsOutbound reports whether edges may originate from a node of this type.
// Tools and MCP servers are leaves.
func (t NodeType) AllowsOutbound() bool {
	return t != NodeTool && t != NodeMCP
}

// Node is the wire form of a graph node. Config holds the payload produced
// by the node's typed NodeConfig.
type Node struct {
	ID     string         `json:"id" yaml:"id"`
	Label  string         `json:"label" yaml:"label"`
	Type   NodeType       `json:"type" yaml:"type"`
	Config map[string]any `json:"config" yaml:"config"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Graph is the author-time workflow: nodes in insertion order plus edges.
// It is serialized wholesale on every compile and export.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Node returns the node with the given id, if present.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// EntryPoint returns the User node, if the graph has one.
func (g *Graph) EntryPoint() (Node, bool) {
	for _, n := range g.Nodes {
		if n.Type == NodeUser {
			return n, true
		}
	}
	return Node{}, false
}

// Targets returns the ids reachable over one edge from id, in edge order.
func (g *Graph) Targets(id string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e.Target)
		}
	}
	return out
}
