package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/flowstudio/internal/directory"
	"github.com/alfredjeanlab/flowstudio/internal/render"
	"github.com/alfredjeanlab/flowstudio/internal/ui"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Short:   "Manage conversations on a sessions server",
	GroupID: "chat",
}

func sessionDirectory() (*directory.Directory, directory.Memory) {
	mem := cfg.Store().SessionMemory(cfg.URL)
	return directory.New(studioClient, mem, logger), mem
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions; the remembered one is marked with *",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := sessionDirectory()
		ids, err := dir.List(context.Background())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, ids)
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "no sessions")
			return nil
		}
		selected := dir.Resolve(ids)
		for _, id := range ids {
			marker := "  "
			if id == selected {
				marker = "* "
			}
			fmt.Fprintf(out, "%s%s\n", marker, id)
		}
		return nil
	},
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a session and remember it for chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := sessionDirectory()
		id, err := dir.Create(context.Background())
		if err != nil {
			return err
		}
		dir.Activate(id)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"session_id": id})
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		dir, mem := sessionDirectory()
		if remembered, err := mem.Remembered(); err == nil && remembered == id {
			// Deleting the active session also forgets it.
			dir.Activate(id)
		}
		if err := dir.Delete(context.Background(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s deleted\n", id)
		return nil
	},
}

var sessionsHistoryCmd = &cobra.Command{
	Use:   "history [<id>]",
	Short: "Print a session's transcript (defaults to the remembered session)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		dir, _ := sessionDirectory()
		var id string
		if len(args) == 1 {
			id = args[0]
		} else {
			ids, err := dir.List(ctx)
			if err != nil {
				return err
			}
			if id = dir.Resolve(ids); id == "" {
				return fmt.Errorf("no sessions")
			}
		}

		msgs, err := dir.History(ctx, id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, msgs)
		}
		fmt.Fprintln(out, ui.RenderAccent("session "+id))
		for _, m := range msgs {
			if e, ok := render.FromMessage(m); ok {
				fmt.Fprintln(out, ui.FormatEntry(e))
			}
		}
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsNewCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsHistoryCmd)
}
