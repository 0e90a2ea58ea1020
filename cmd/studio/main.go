package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/alfredjeanlab/flowstudio/internal/client"
	"github.com/alfredjeanlab/flowstudio/internal/config"
	"github.com/alfredjeanlab/flowstudio/internal/protocol"
	"github.com/alfredjeanlab/flowstudio/internal/ui"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	urlFlag    string
	flavorFlag string

	cfg          *config.Config
	logger       *slog.Logger
	studioClient *client.HTTPClient
)

var rootCmd = &cobra.Command{
	Use:           "studio <command>",
	Short:         "Design multi-agent workflows and chat with them",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if urlFlag != "" {
			c.URL = urlFlag
		}
		if flavorFlag != "" {
			f, err := protocol.ParseFlavor(flavorFlag)
			if err != nil {
				return err
			}
			c.Flavor = f
		}
		cfg = c
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
		studioClient = newClient(c)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if studioClient != nil {
			studioClient.Close()
		}
	},
}

func newClient(c *config.Config) *client.HTTPClient {
	return client.NewHTTPClient(c.URL,
		client.WithToken(c.Token),
		client.WithPrefix(c.APIPrefix),
		client.WithTimeout(c.HTTPTimeout),
	)
}

// authHeader carries the bearer token on WebSocket handshakes.
func authHeader(c *config.Config) http.Header {
	if c.Token == "" {
		return nil
	}
	return http.Header{"Authorization": {"Bearer " + c.Token}}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "", "backend URL (overrides STUDIO_URL and the active remote)")
	rootCmd.PersistentFlags().StringVar(&flavorFlag, "flavor", "", "server flavor: studio or sessions (overrides STUDIO_FLAVOR)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "design", Title: "Design:"},
		&cobra.Group{ID: "chat", Title: "Chat:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Design
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(toolsCmd)

	// Chat
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
