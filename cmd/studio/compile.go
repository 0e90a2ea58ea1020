package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/flowstudio/internal/compiler"
	"github.com/alfredjeanlab/flowstudio/internal/graph"
	"github.com/alfredjeanlab/flowstudio/internal/ui"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:     "compile <file>",
	Short:   "Submit a graph to the backend compiler",
	GroupID: "design",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ed, err := graph.Load(args[0])
		if err != nil {
			return err
		}
		g := ed.Export()
		printWarnings(cmd.ErrOrStderr(), graph.Lint(g))

		res := compiler.New(studioClient, logger).Compile(context.Background(), g)
		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			return res.Err()
		}
		if !res.Ready {
			return res.Err()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d nodes)\n", ui.RenderPass("compiled"), args[0], len(g.Nodes))
		return nil
	},
}
