package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/covergrid/portfolio-cli/internal/store"
)

var batchStatus bool

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run one scoring pass over all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if batchStatus {
			runs, err := env.Store.RecentRuns(ctx, 10)
			if err != nil {
				return err
			}
			printRunLog(runs)
			return nil
		}

		result, err := env.Orchestrator.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Processed: %d\nAlerts:    %d\nSkipped:   %d\nFailed:    %d\n",
			result.UsersProcessed, result.AlertsCreated, result.UsersSkipped, result.UsersFailed)
		return nil
	},
}

func init() {
	batchCmd.Flags().BoolVar(&batchStatus, "status", false, "show recent batch runs instead of starting one")
	rootCmd.AddCommand(batchCmd)
}

func printRunLog(runs []store.RunEntry) {
	if len(runs) == 0 {
		fmt.Println("No batch runs recorded.")
		return
	}
	fmt.Printf("%-6s %-10s %-20s %-20s %9s %6s %7s %6s\n",
		"ID", "Status", "Started", "Completed", "Processed", "Alerts", "Skipped", "Failed")
	for _, r := range runs {
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format(time.DateTime)
		}
		fmt.Printf("%-6d %-10s %-20s %-20s %9d %6d %7d %6d\n",
			r.ID, r.Status, r.StartedAt.Format(time.DateTime), completed,
			r.UsersProcessed, r.AlertsCreated, r.UsersSkipped, r.UsersFailed)
	}
}
