package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alfredjeanlab/flowstudio/internal/model"
)

// WarningKind classifies a lint finding.
type WarningKind string

const (
	WarnNoEntryPoint WarningKind = "no_entry_point"
	WarnCycle        WarningKind = "cycle"
	WarnUnreachable  WarningKind = "unreachable"
	WarnIncomplete   WarningKind = "incomplete"
)

// Warning is a non-blocking structural observation about a graph.
type Warning struct {
	Kind    WarningKind
	NodeIDs []string
	Msg     string
}

func (w Warning) String() string { return string(w.Kind) + ": " + w.Msg }

// Lint reports cycles, nodes missing required settings, and nodes
// unreachable from the User entry point.
// Findings are deterministic for a given graph. Lint never rejects a graph;
// the remote compiler is authoritative.
func Lint(g model.Graph) []Warning {
	var warnings []Warning

	adjacency := make(map[string][]string)
	for _, e := range g.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
	}
	for id := range adjacency {
		sort.Strings(adjacency[id])
	}

	if cycle := findCycle(g, adjacency); cycle != nil {
		warnings = append(warnings, Warning{
			Kind:    WarnCycle,
			NodeIDs: cycle,
			Msg:     fmt.Sprintf("cycle detected: %s", strings.Join(labels(g, cycle), " -> ")),
		})
	}

	warnings = append(warnings, incomplete(g)...)

	entry, ok := g.EntryPoint()
	if !ok {
		if len(g.Nodes) > 0 {
			warnings = append(warnings, Warning{Kind: WarnNoEntryPoint, Msg: "graph has no user node"})
		}
		return warnings
	}

	reached := map[string]bool{entry.ID: true}
	queue := []string{entry.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[id] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	var unreachable []string
	for _, n := range g.Nodes {
		if !reached[n.ID] {
			unreachable = append(unreachable, n.ID)
		}
	}
	if len(unreachable) > 0 {
		warnings = append(warnings, Warning{
			Kind:    WarnUnreachable,
			NodeIDs: unreachable,
			Msg:     fmt.Sprintf("not reachable from %s: %s", entry.Label, strings.Join(labels(g, unreachable), ", ")),
		})
	}
	return warnings
}

// incomplete reports one warning per node whose configuration still lacks
// fields the compiler requires. Undecodable configs are left to the compiler.
func incomplete(g model.Graph) []Warning {
	var warnings []Warning
	for _, n := range g.Nodes {
		cfg, err := model.DecodeConfig(n.Type, n.Config)
		if err != nil {
			continue
		}
		missing := model.Missing(cfg)
		if len(missing) == 0 {
			continue
		}
		fields := make([]string, len(missing))
		for i, fe := range missing {
			fields[i] = fe.Field + " " + fe.Message
		}
		warnings = append(warnings, Warning{
			Kind:    WarnIncomplete,
			NodeIDs: []string{n.ID},
			Msg:     fmt.Sprintf("%s: %s", n.Label, strings.Join(fields, ", ")),
		})
	}
	return warnings
}

// findCycle returns the first cycle found by a DFS over nodes in insertion
// order, as a closed path, or nil.
func findCycle(g model.Graph, adjacency map[string][]string) []string {
	// 0 = unvisited, 1 = on the current path, 2 = done
	color := make(map[string]int, len(g.Nodes))
	var path []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		color[id] = 1
		path = append(path, id)
		for _, next := range adjacency[id] {
			switch color[next] {
			case 1:
				start := 0
				for i, p := range path {
					if p == next {
						start = i
						break
					}
				}
				cycle := append([]string{}, path[start:]...)
				return append(cycle, next)
			case 0:
				if c := dfs(next); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = 2
		return nil
	}

	for _, n := range g.Nodes {
		if color[n.ID] == 0 {
			if c := dfs(n.ID); c != nil {
				return c
			}
		}
	}
	return nil
}

func labels(g model.Graph, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if n, ok := g.Node(id); ok {
			out[i] = n.Label
		} else {
			out[i] = id
		}
	}
	return out
}
