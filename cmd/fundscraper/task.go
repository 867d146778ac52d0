package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fundscraper/pkg/models"
)

var (
	historySource   string
	historyKind     string
	historyStatus   string
	historyPage     int
	historyPageSize int
)

// taskCmd groups task inspection subcommands.
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect collection tasks",
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show one task with its per-item outcomes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, store, _, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		task, err := service.TaskStatus(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Task %s\n", task.TaskID)
		fmt.Printf("  Source:  %s\n", task.Source)
		fmt.Printf("  Kind:    %s\n", task.Kind)
		fmt.Printf("  Status:  %s\n", task.Status)
		fmt.Printf("  Items:   %d total, %d succeeded, %d failed\n",
			task.TotalCount, task.SuccessCount, task.ErrorCount)
		if task.ErrorMessage != "" {
			fmt.Printf("  Error:   %s\n", task.ErrorMessage)
		}
		fmt.Printf("  Created: %s\n", task.CreatedAt.Format(time.RFC3339))
		if task.StartedAt != nil {
			fmt.Printf("  Started: %s\n", task.StartedAt.Format(time.RFC3339))
		}
		if task.EndedAt != nil {
			fmt.Printf("  Ended:   %s\n", task.EndedAt.Format(time.RFC3339))
		}

		for _, item := range task.Items {
			line := fmt.Sprintf("  - %s  %s", item.EntityKey, item.Status)
			if item.ErrorMessage != "" {
				line += "  " + item.ErrorMessage
			}
			fmt.Println(line)
		}
		return nil
	},
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past tasks, newest first",
	Example: `  # Last 20 tasks
  fundscraper task history

  # Failed eastmoney tasks only
  fundscraper task history --source eastmoney --status failed`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, store, _, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		filter := models.TaskFilter{
			Source: models.Source(historySource),
			Kind:   models.DataKind(historyKind),
			Status: models.TaskStatus(historyStatus),
		}

		page, err := service.TaskHistory(filter, historyPage, historyPageSize)
		if err != nil {
			return err
		}

		fmt.Printf("%d tasks (page %d, %d per page)\n", page.Total, page.Page, page.PageSize)
		for _, task := range page.Tasks {
			fmt.Printf("  %s  %-10s %-13s %-9s %3d ok %3d failed  %s\n",
				task.TaskID, task.Source, task.Kind, task.Status,
				task.SuccessCount, task.ErrorCount,
				task.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskHistoryCmd)

	taskHistoryCmd.Flags().StringVar(&historySource, "source", "", "filter by source")
	taskHistoryCmd.Flags().StringVar(&historyKind, "kind", "", "filter by data kind")
	taskHistoryCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status")
	taskHistoryCmd.Flags().IntVar(&historyPage, "page", 1, "page number")
	taskHistoryCmd.Flags().IntVar(&historyPageSize, "page-size", 20, "tasks per page")
}
