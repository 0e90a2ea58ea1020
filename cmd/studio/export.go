package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/flowstudio/internal/export"
	"github.com/alfredjeanlab/flowstudio/internal/graph"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export <file>",
	Short:   "Render a graph to a workflow artifact",
	GroupID: "design",
	Long: `Render a graph to a workflow artifact using the backend exporter.

Destinations (--out, repeatable):
  -                  standard output (default)
  path/to/file.yaml  local file, or a path inside --git-repo when set
  s3://bucket/key    S3 object (STUDIO_S3_REGION, STUDIO_S3_ENDPOINT)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		outs, _ := cmd.Flags().GetStringArray("out")
		gitRepo, _ := cmd.Flags().GetString("git-repo")
		gitBranch, _ := cmd.Flags().GetString("git-branch")
		if len(outs) == 0 {
			outs = []string{"-"}
		}

		ed, err := graph.Load(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		opts := export.Options{
			S3Region:   cfg.S3Region,
			S3Endpoint: cfg.S3Endpoint,
			GitRepo:    gitRepo,
			GitBranch:  gitBranch,
			Format:     format,
		}
		dests, err := export.ParseDestinations(ctx, outs, opts)
		if err != nil {
			return fmt.Errorf("export destination: %w", err)
		}

		_, err = export.NewExporter(studioClient, dests, logger).Export(ctx, ed.Export(), format)
		return err
	},
}

func init() {
	exportCmd.Flags().String("format", export.FormatYAML, "artifact format (yaml or json)")
	exportCmd.Flags().StringArray("out", nil, "destination: -, a file path, or s3://bucket/key (repeatable)")
	exportCmd.Flags().String("git-repo", "", "git clone to commit file destinations into")
	exportCmd.Flags().String("git-branch", "main", "branch to push when --git-repo is set")
}
