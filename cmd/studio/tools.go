package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:     "tools [<kind>]",
	Short:   "List tool kinds and their configuration fields",
	GroupID: "design",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemas, err := studioClient.GetToolSchemas(context.Background())
		if err != nil {
			return fmt.Errorf("loading tool schemas: %w", err)
		}
		out := cmd.OutOrStdout()

		kinds := schemas.Kinds()
		if len(args) == 1 {
			if _, ok := schemas[args[0]]; !ok {
				return fmt.Errorf("unknown tool kind %q", args[0])
			}
			kinds = []string{args[0]}
		}
		if jsonOutput {
			if len(args) == 1 {
				return printJSON(out, schemas[args[0]])
			}
			return printJSON(out, schemas)
		}
		if len(kinds) == 0 {
			fmt.Fprintln(out, "no tool kinds available")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tFIELD\tLABEL\tDESCRIPTION")
		for _, kind := range kinds {
			fields := schemas[kind].Fields()
			if len(fields) == 0 {
				fmt.Fprintf(w, "%s\t-\t\t\n", kind)
				continue
			}
			for i, f := range fields {
				k := ""
				if i == 0 {
					k = kind
				}
				name := f.Name
				if f.Required {
					name += "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k, name, f.Label, truncate(f.Description, 60))
			}
		}
		return w.Flush()
	},
}
