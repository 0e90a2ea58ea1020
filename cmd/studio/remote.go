package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/flowstudio/internal/config"
	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named backend profiles",
	GroupID: "system",
	// Profiles are local state; no backend client is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

// stateStore opens the state file the same way config.Load locates it.
func stateStore() (*config.StateStore, error) {
	dir := os.Getenv("STUDIO_STATE_DIR")
	if dir == "" {
		d, err := config.DefaultStateDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return config.NewStateStore(config.StatePath(dir)), nil
}

func updateState(fn func(*config.State) error) error {
	store, err := stateStore()
	if err != nil {
		return err
	}
	return store.Update(fn)
}

func loadState() (config.State, error) {
	store, err := stateStore()
	if err != nil {
		return config.State{}, err
	}
	return store.Load()
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or update a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], strings.TrimRight(args[1], "/")
		token, _ := cmd.Flags().GetString("token")
		natsURL, _ := cmd.Flags().GetString("nats")

		err := updateState(func(st *config.State) error {
			st.Remotes[name] = config.Remote{URL: url, Token: token, NATSURL: natsURL}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q added (%s)\n", name, url)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateState(func(st *config.State) error {
			r, ok := st.Remotes[name]
			if !ok {
				return fmt.Errorf("remote %q not found", name)
			}
			delete(st.Remotes, name)
			delete(st.Sessions, r.URL)
			if st.Active == name {
				st.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", name)
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all remotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadState()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(st.Remotes) == 0 {
			fmt.Fprintln(out, "no remotes configured")
			return nil
		}
		names := make([]string, 0, len(st.Remotes))
		for name := range st.Remotes {
			names = append(names, name)
		}
		slices.Sort(names)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tTOKEN\tSESSION")
		for _, name := range names {
			r := st.Remotes[name]
			marker := "  "
			if name == st.Active {
				marker = "* "
			}
			token := r.Token
			if len(token) > 8 {
				token = token[:8] + "..."
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, r.URL, token, st.Sessions[r.URL])
		}
		return w.Flush()
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateState(func(st *config.State) error {
			if _, ok := st.Remotes[name]; !ok {
				return fmt.Errorf("remote %q not found", name)
			}
			st.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active remote set to %q\n", name)
		return nil
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show details for a remote (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadState()
		if err != nil {
			return err
		}
		name := st.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active remote; specify a name or run 'studio remote use <name>'")
		}
		r, ok := st.Remotes[name]
		if !ok {
			return fmt.Errorf("remote %q not found", name)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		active := ""
		if name == st.Active {
			active = " (active)"
		}
		fmt.Fprintf(w, "name:\t%s%s\n", name, active)
		fmt.Fprintf(w, "url:\t%s\n", r.URL)
		if r.Token != "" {
			masked := r.Token
			if len(masked) > 8 {
				masked = masked[:8] + strings.Repeat("*", len(masked)-8)
			}
			fmt.Fprintf(w, "token:\t%s\n", masked)
		}
		if r.NATSURL != "" {
			fmt.Fprintf(w, "nats_url:\t%s\n", r.NATSURL)
		}
		if s := st.Sessions[r.URL]; s != "" {
			fmt.Fprintf(w, "last session:\t%s\n", s)
		}
		return w.Flush()
	},
}

func init() {
	remoteAddCmd.Flags().String("token", "", "bearer token for authentication")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for event streaming")

	remoteCmd.AddCommand(remoteAddCmd)
	remoteCmd.AddCommand(remoteRemoveCmd)
	remoteCmd.AddCommand(remoteListCmd)
	remoteCmd.AddCommand(remoteUseCmd)
	remoteCmd.AddCommand(remoteShowCmd)
}
