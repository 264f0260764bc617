package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scriptorium/internal/api"
	"scriptorium/internal/scheduler"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show workspace and job store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			health, err := api.JobHealth(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Workspace: %s\n", cfg.Paths.WorkspaceDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Workers:   %d\n", cfg.Scheduler.Workers)
			if health.Total == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
				return nil
			}
			rows := buildHealthRows(health)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func buildHealthRows(health api.HealthView) [][]string {
	rows := make([][]string, 0, len(scheduler.AllStatuses())+1)
	for _, status := range scheduler.AllStatuses() {
		count := health.ByStatus[string(status)]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{string(status), strconv.Itoa(count)})
	}
	rows = append(rows, []string{"total", strconv.Itoa(health.Total)})
	return rows
}
