package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/flowstudio/internal/graph"
	"github.com/alfredjeanlab/flowstudio/internal/model"
	"github.com/alfredjeanlab/flowstudio/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printGraphTable(w io.Writer, g model.Graph) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tLABEL\tTARGETS")
	for _, n := range g.Nodes {
		var targets []string
		for _, t := range g.Targets(n.ID) {
			if tn, ok := g.Node(t); ok {
				targets = append(targets, tn.Label)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortID(n.ID), n.Type, truncate(n.Label, 40), strings.Join(targets, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
	return nil
}

func printNodeTable(w io.Writer, n model.Node) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", n.ID)
	fmt.Fprintf(tw, "Label:\t%s\n", n.Label)
	fmt.Fprintf(tw, "Type:\t%s\n", n.Type.Title())
	keys := make([]string, 0, len(n.Config))
	for k := range n.Config {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s:\t%v\n", k, n.Config[k])
	}
	return tw.Flush()
}

func printWarnings(w io.Writer, warnings []graph.Warning) {
	for _, warn := range warnings {
		fmt.Fprintln(w, ui.RenderWarn("warning: ")+warn.String())
	}
}
