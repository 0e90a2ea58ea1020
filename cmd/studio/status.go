package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/alfredjeanlab/flowstudio/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show backend health and the loaded workflow",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := studioClient.Status(context.Background())
		if err != nil {
			return fmt.Errorf("checking %s: %w", cfg.URL, err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "url:\t%s\n", cfg.URL)
		if cfg.Remote != "" {
			fmt.Fprintf(w, "remote:\t%s\n", cfg.Remote)
		}
		fmt.Fprintf(w, "flavor:\t%s\n", cfg.Flavor)
		fmt.Fprintf(w, "status:\t%s\n", resp.Status)
		workflow := ui.RenderWarn("not loaded")
		if resp.Ready() {
			workflow = ui.RenderPass("loaded")
		}
		fmt.Fprintf(w, "workflow:\t%s\n", workflow)
		if resp.RootNode != "" {
			fmt.Fprintf(w, "root node:\t%s\n", resp.RootNode)
		}
		return w.Flush()
	},
}
