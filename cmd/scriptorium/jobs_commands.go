package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scriptorium/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage scheduled jobs",
	}
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsShowCommand(ctx))
	cmd.AddCommand(newJobsCancelCommand(ctx))
	cmd.AddCommand(newJobsRetryCommand(ctx))
	cmd.AddCommand(newJobsClearCommand(ctx))
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			jobs, err := api.ListJobs(cmd.Context(), api.ListJobsRequest{Config: cfg, Statuses: statuses})
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					job.Project + "/" + job.Sandbox,
					job.Status,
					job.ShortDescription,
					job.CreatedAt,
				})
			}
			headers := []string{"ID", "Sandbox", "Status", "Description", "Created"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			job, err := api.DescribeJob(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			if job == nil {
				return fmt.Errorf("job %s not found", args[0])
			}
			printJob(cmd, job)
			return nil
		},
	}
}

func printJob(cmd *cobra.Command, job *api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", job.ID)
	fmt.Fprintf(out, "Sandbox:     %s/%s\n", job.Project, job.Sandbox)
	fmt.Fprintf(out, "Status:      %s\n", job.Status)
	if job.ShortDescription != "" {
		fmt.Fprintf(out, "Description: %s\n", job.ShortDescription)
	}
	if job.ParentTrack == "" {
		fmt.Fprintf(out, "Parent:      root\n")
	} else {
		fmt.Fprintf(out, "Parent:      %s\n", job.ParentTrack)
	}
	if job.ResultTrack != "" {
		fmt.Fprintf(out, "Result:      %s\n", job.ResultTrack)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:       %s\n", job.ErrorMessage)
	}
	fmt.Fprintf(out, "Created:     %s\n", job.CreatedAt)
	if job.StartedAt != "" {
		fmt.Fprintf(out, "Started:     %s\n", job.StartedAt)
	}
	if job.FinishedAt != "" {
		fmt.Fprintf(out, "Finished:    %s\n", job.FinishedAt)
	}
	if job.LastHeartbeat != "" {
		fmt.Fprintf(out, "Heartbeat:   %s\n", job.LastHeartbeat)
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cancelled, err := api.CancelQueuedJob(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			if !cancelled {
				return fmt.Errorf("job %s is not queued; running jobs are cancelled through the daemon", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
			return nil
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id> [job-id...]",
		Short: "Re-queue failed jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			requeued, err := api.RetryJobs(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Re-queued %d job(s)\n", requeued)
			return nil
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			removed, err := api.ClearFinishedJobs(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
			return nil
		},
	}
}
