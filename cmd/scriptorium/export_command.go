package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scriptorium/internal/export"
	"scriptorium/internal/logging"
	"scriptorium/internal/project"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/track"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		projectID string
		sandboxID string
		at        string
		outPath   string
		normalize bool
		source    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a snapshot as a zip archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshotTrack, err := track.Parse(at)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = "snapshot.zip"
			}

			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create archive %s: %w", outPath, err)
			}

			projects := project.NewStore(cfg.Paths.WorkspaceDir)
			exporter := export.NewExporter(cfg, projects, snapshot.NewManager(projects), logging.NewNop())
			if err := exporter.ZipSnapshot(cmd.Context(), out, export.Request{
				ProjectID:           projectID,
				SandboxID:           sandboxID,
				Track:               snapshotTrack,
				NormalizeFilenames:  normalize,
				IncludeSourceImages: source,
			}); err != nil {
				out.Close()
				os.Remove(outPath)
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("close archive %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported snapshot to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project identifier")
	cmd.Flags().StringVarP(&sandboxID, "sandbox", "s", "", "Sandbox identifier")
	cmd.Flags().StringVar(&at, "track", "", "Snapshot track (defaults to the root snapshot)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Archive path (defaults to snapshot.zip)")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Normalize entry names and dedup case-insensitively")
	cmd.Flags().BoolVar(&source, "source", false, "Bundle the project's folio images under source/")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("sandbox")
	return cmd
}
