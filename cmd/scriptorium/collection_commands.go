package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scriptorium/internal/collection"
	"scriptorium/internal/logging"
	"scriptorium/internal/project"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/track"
	"scriptorium/internal/workflow"
)

func newCollectionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage shared page collections",
	}
	cmd.AddCommand(newCollectionAddCommand(ctx))
	cmd.AddCommand(newCollectionListCommand(ctx))
	cmd.AddCommand(newCollectionSetsCommand(ctx))
	cmd.AddCommand(newCollectionRemoveCommand(ctx))
	return cmd
}

func newCollectionAddCommand(ctx *commandContext) *cobra.Command {
	var (
		projectID string
		sandboxID string
		at        string
		setName   string
		kind      string
		folios    []string
		keywords  bool
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "add <collection>",
		Short: "Import a snapshot's pages into a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshotTrack, err := track.Parse(at)
			if err != nil {
				return err
			}
			stepKind := workflow.StepKind(kind)
			if !stepKind.Valid() {
				return fmt.Errorf("unknown workflow kind %q", kind)
			}

			projects := project.NewStore(cfg.Paths.WorkspaceDir)
			bridge := collection.NewBridge(cfg, projects, snapshot.NewManager(projects),
				collection.NewStore(cfg.Paths.CollectionDir), logging.NewNop())
			set, err := bridge.AddSnapshot(cmd.Context(), collection.AddSnapshotRequest{
				ProjectID:       projectID,
				SandboxID:       sandboxID,
				Track:           snapshotTrack,
				Collection:      args[0],
				SetName:         setName,
				Kind:            stepKind,
				Folios:          folios,
				IncludeKeywords: keywords,
				Overwrite:       overwrite,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added set %s (%s) to collection %s\n", set.Name, set.ID, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project identifier")
	cmd.Flags().StringVarP(&sandboxID, "sandbox", "s", "", "Sandbox identifier")
	cmd.Flags().StringVar(&at, "track", "", "Snapshot track (defaults to the root snapshot)")
	cmd.Flags().StringVar(&setName, "name", "", "Display name for the imported set")
	cmd.Flags().StringVar(&kind, "kind", string(workflow.KindLarexExport), "Workflow kind that produced the snapshot")
	cmd.Flags().StringSliceVar(&folios, "folio", nil, "Import only this folio (repeatable; default all)")
	cmd.Flags().BoolVar(&keywords, "keywords", false, "Record project, sandbox, and label as set keywords")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing set with the same id")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("sandbox")
	return cmd
}

func newCollectionListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			names, err := collection.NewStore(cfg.Paths.CollectionDir).List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No collections found")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newCollectionSetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sets <collection>",
		Short: "List the sets of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sets, err := collection.NewStore(cfg.Paths.CollectionDir).Sets(args[0])
			if err != nil {
				return err
			}
			if len(sets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sets found")
				return nil
			}
			rows := make([][]string, 0, len(sets))
			for _, set := range sets {
				rows = append(rows, []string{set.ID, set.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}

func newCollectionRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <collection> <set-id>",
		Short: "Remove a set from a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := collection.NewStore(cfg.Paths.CollectionDir).Remove(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed set %s from collection %s\n", args[1], args[0])
			return nil
		},
	}
}
