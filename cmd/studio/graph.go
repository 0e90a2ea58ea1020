package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/alfredjeanlab/flowstudio/internal/graph"
	"github.com/alfredjeanlab/flowstudio/internal/model"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:     "graph",
	Short:   "Edit a workflow graph file",
	GroupID: "design",
	Long: `Edit a workflow graph stored as a YAML (.yaml/.yml) or JSON file.

Nodes may be referenced by full id, by a unique id prefix, or by a unique label.`,
}

var graphNewCmd = &cobra.Command{
	Use:   "new <file>",
	Short: "Create a graph file with a User and a default agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		empty, _ := cmd.Flags().GetBool("empty")
		force, _ := cmd.Flags().GetBool("force")
		path := args[0]
		if !force && fileExists(path) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		ed := graph.DefaultWorkflow()
		if empty {
			ed = graph.New()
		}
		if err := graph.WriteFile(path, ed.Export()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%d nodes)\n", path, ed.Len())
		return nil
	},
}

var graphShowCmd = &cobra.Command{
	Use:   "show <file> [<node>]",
	Short: "Show a graph, or one node's configuration",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ed, err := graph.Load(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(args) == 2 {
			id, err := resolveNode(ed, args[1])
			if err != nil {
				return err
			}
			n, _ := ed.Node(id)
			if jsonOutput {
				return printJSON(out, n)
			}
			return printNodeTable(out, n)
		}
		g := ed.Export()
		if jsonOutput {
			return printJSON(out, g)
		}
		if err := printGraphTable(out, g); err != nil {
			return err
		}
		printWarnings(cmd.ErrOrStderr(), graph.Lint(g))
		return nil
	},
}

var graphAddNodeCmd = &cobra.Command{
	Use:   "add-node <file> <type> <label>",
	Short: "Add a node (user, supervisor, agent, tool, mcp)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id string
		err := editGraph(args[0], func(ed *graph.Editor) error {
			var err error
			id, err = ed.AddNode(model.NodeType(strings.ToLower(args[1])), args[2])
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var graphRemoveNodeCmd = &cobra.Command{
	Use:   "remove-node <file> <node>",
	Short: "Remove a node and its edges",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editGraph(args[0], func(ed *graph.Editor) error {
			id, err := resolveNode(ed, args[1])
			if err != nil {
				return err
			}
			return ed.RemoveNode(id)
		})
	},
}

var graphAddEdgeCmd = &cobra.Command{
	Use:   "add-edge <file> <source> <target>",
	Short: "Connect two nodes",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editGraph(args[0], func(ed *graph.Editor) error {
			src, tgt, err := resolvePair(ed, args[1], args[2])
			if err != nil {
				return err
			}
			return ed.AddEdge(src, tgt)
		})
	},
}

var graphRemoveEdgeCmd = &cobra.Command{
	Use:   "remove-edge <file> <source> <target>",
	Short: "Remove one edge between two nodes",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editGraph(args[0], func(ed *graph.Editor) error {
			src, tgt, err := resolvePair(ed, args[1], args[2])
			if err != nil {
				return err
			}
			return ed.RemoveEdge(src, tgt)
		})
	},
}

var graphSetCmd = &cobra.Command{
	Use:   "set <file> <node> <key=value>...",
	Short: "Update a node's label or configuration",
	Long: `Update a node's label or configuration.

Keys are configuration fields (system_message, keep_history, output_schema,
strict, can_respond_directly, tool_kind, transport, url, auth_token,
script_path) or "label". Tool settings use "config.<name>=<value>".
"true" and "false" are stored as booleans.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editGraph(args[0], func(ed *graph.Editor) error {
			id, err := resolveNode(ed, args[1])
			if err != nil {
				return err
			}
			n, _ := ed.Node(id)
			partial, err := parseAssignments(args[2:], n.Config)
			if err != nil {
				return err
			}
			return ed.UpdateNodeData(id, partial)
		})
	},
}

func init() {
	graphNewCmd.Flags().Bool("empty", false, "create a graph with no nodes")
	graphNewCmd.Flags().Bool("force", false, "overwrite an existing file")

	graphCmd.AddCommand(graphNewCmd)
	graphCmd.AddCommand(graphShowCmd)
	graphCmd.AddCommand(graphAddNodeCmd)
	graphCmd.AddCommand(graphRemoveNodeCmd)
	graphCmd.AddCommand(graphAddEdgeCmd)
	graphCmd.AddCommand(graphRemoveEdgeCmd)
	graphCmd.AddCommand(graphSetCmd)
}

// editGraph loads path, applies fn and writes the result back. The file is
// left untouched when fn fails.
func editGraph(path string, fn func(*graph.Editor) error) error {
	ed, err := graph.Load(path)
	if err != nil {
		return err
	}
	if err := fn(ed); err != nil {
		return err
	}
	return graph.WriteFile(path, ed.Export())
}

var errAmbiguousNode = errors.New("ambiguous node reference")

// resolveNode finds a node by exact id, unique id prefix or unique label.
func resolveNode(ed *graph.Editor, ref string) (string, error) {
	if _, ok := ed.Node(ref); ok {
		return ref, nil
	}
	var matches []string
	for _, n := range ed.Export().Nodes {
		if strings.HasPrefix(n.ID, ref) || strings.EqualFold(n.Label, ref) {
			matches = append(matches, n.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", &graph.NodeError{ID: ref, Err: graph.ErrNodeNotFound}
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%w %q: matches %d nodes", errAmbiguousNode, ref, len(matches))
}

func resolvePair(ed *graph.Editor, a, b string) (string, string, error) {
	src, err := resolveNode(ed, a)
	if err != nil {
		return "", "", err
	}
	tgt, err := resolveNode(ed, b)
	if err != nil {
		return "", "", err
	}
	return src, tgt, nil
}

// parseAssignments turns key=value arguments into a partial config update.
// "config.<name>" keys merge into the node's existing tool settings.
func parseAssignments(assignments []string, current map[string]any) (map[string]any, error) {
	partial := map[string]any{}
	var settings map[string]any
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (want key=value)", a)
		}
		name, isSetting := strings.CutPrefix(key, model.KeyToolConfig+".")
		if !isSetting {
			partial[key] = parseValue(value)
			continue
		}
		if settings == nil {
			settings = map[string]any{}
			if existing, ok := current[model.KeyToolConfig].(map[string]any); ok {
				maps.Copy(settings, existing)
			}
		}
		settings[name] = parseValue(value)
	}
	if settings != nil {
		partial[model.KeyToolConfig] = settings
	}
	return partial, nil
}

func parseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
