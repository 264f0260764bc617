package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scriptorium/internal/api"
	"scriptorium/internal/track"
)

func newTreeCommand(ctx *commandContext) *cobra.Command {
	var (
		projectID string
		sandboxID string
		at        string
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Inspect the snapshot tree of a sandbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root, err := track.Parse(at)
			if err != nil {
				return err
			}
			view, err := api.SnapshotTree(api.TreeRequest{
				Config:    cfg,
				ProjectID: projectID,
				SandboxID: sandboxID,
				At:        root,
			})
			if err != nil {
				return err
			}
			printSnapshot(cmd, view, 0)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&projectID, "project", "p", "", "Project identifier")
	cmd.PersistentFlags().StringVarP(&sandboxID, "sandbox", "s", "", "Sandbox identifier")
	cmd.MarkPersistentFlagRequired("project")
	cmd.MarkPersistentFlagRequired("sandbox")
	cmd.Flags().StringVar(&at, "track", "", "Root the listing at this track")

	cmd.AddCommand(newTreeLockCommand(ctx, &projectID, &sandboxID))
	cmd.AddCommand(newTreeUnlockCommand(ctx, &projectID, &sandboxID))
	cmd.AddCommand(newTreeRemoveCommand(ctx, &projectID, &sandboxID))
	cmd.AddCommand(newTreeDescribeCommand(ctx, &projectID, &sandboxID))
	cmd.AddCommand(newTreeResetCommand(ctx, &projectID, &sandboxID))
	return cmd
}

func printSnapshot(cmd *cobra.Command, view api.SnapshotView, depth int) {
	name := view.Dotted
	if name == "" {
		name = "root"
	}
	line := strings.Repeat("  ", depth) + name
	if view.Label != "" {
		line += "  " + view.Label
	}
	if view.Lock != nil {
		line += fmt.Sprintf("  [locked by %s]", view.Lock.SourceID)
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
	for _, child := range view.Children {
		printSnapshot(cmd, child, depth+1)
	}
}

func newTreeLockCommand(ctx *commandContext, projectID, sandboxID *string) *cobra.Command {
	var (
		sourceID string
		comment  string
	)
	cmd := &cobra.Command{
		Use:   "lock <track>",
		Short: "Lock a snapshot against removal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			at, err := track.Parse(args[0])
			if err != nil {
				return err
			}
			if err := api.LockSnapshot(cfg, *projectID, *sandboxID, at, sourceID, comment); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Locked snapshot %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceID, "source", "cli", "Identifier of the locking source")
	cmd.Flags().StringVar(&comment, "comment", "", "Lock comment")
	return cmd
}

func newTreeUnlockCommand(ctx *commandContext, projectID, sandboxID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <track>",
		Short: "Release a snapshot lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			at, err := track.Parse(args[0])
			if err != nil {
				return err
			}
			if err := api.UnlockSnapshot(cfg, *projectID, *sandboxID, at); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unlocked snapshot %s\n", args[0])
			return nil
		},
	}
}

func newTreeDescribeCommand(ctx *commandContext, projectID, sandboxID *string) *cobra.Command {
	var (
		label       string
		description string
	)
	cmd := &cobra.Command{
		Use:   "describe <track>",
		Short: "Update a snapshot's label and description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			at, err := track.Parse(args[0])
			if err != nil {
				return err
			}
			if err := api.DescribeSnapshot(cfg, *projectID, *sandboxID, at, label, description); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated snapshot %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Snapshot label")
	cmd.Flags().StringVar(&description, "description", "", "Snapshot description")
	return cmd
}

func newTreeResetCommand(ctx *commandContext, projectID, sandboxID *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard all snapshots and recreate an empty root",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("reset discards every snapshot of the sandbox; re-run with --force to confirm")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := api.ResetSandbox(cfg, *projectID, *sandboxID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset sandbox %s/%s\n", *projectID, *sandboxID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Confirm the destructive reset")
	return cmd
}

func newTreeRemoveCommand(ctx *commandContext, projectID, sandboxID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <track>",
		Short: "Remove a derived snapshot and its subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			at, err := track.Parse(args[0])
			if err != nil {
				return err
			}
			if at.IsRoot() {
				return fmt.Errorf("the root snapshot cannot be removed")
			}
			if err := api.RemoveSnapshot(cfg, *projectID, *sandboxID, at.Parent(), at.Last()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed snapshot %s\n", args[0])
			return nil
		},
	}
}
