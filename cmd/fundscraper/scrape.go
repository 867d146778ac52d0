package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fundscraper/pkg/models"
)

var scrapeKind string

// scrapeCmd creates and runs a collection task over a batch of fund codes.
var scrapeCmd = &cobra.Command{
	Use:   "scrape <fund-code>...",
	Short: "Fetch and store raw documents for a batch of funds",
	Long: `Create a collection task over the given fund codes and run it. Each
code is fetched concurrently; a failed code records its error and the
rest of the batch continues. The raw payloads are stored verbatim,
deduplicated on their natural key.`,
	Example: `  # Fetch the detail page for two funds
  fundscraper scrape 000001 000002

  # Fetch NAV history instead
  fundscraper scrape 000001 --kind fund_daily`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := models.DataKind(scrapeKind)
		switch kind {
		case models.KindBasic, models.KindDaily, models.KindHoldings, models.KindRating, models.KindOther:
		default:
			return fmt.Errorf("unknown data kind %q", scrapeKind)
		}

		service, store, _, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		task, err := service.CreateTask(models.SourceEastmoney, kind, args)
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		fmt.Printf("Task %s created (%d items)\n", task.TaskID, task.TotalCount)

		result, err := service.RunTask(task.TaskID)
		if err != nil {
			return fmt.Errorf("task %s failed: %w", task.TaskID, err)
		}

		fmt.Printf("Task %s %s: %d succeeded, %d failed\n",
			result.TaskID, result.Status, result.SuccessCount, result.ErrorCount)

		if result.ErrorCount > 0 {
			detail, err := service.TaskStatus(result.TaskID)
			if err != nil {
				return err
			}
			for _, item := range detail.Items {
				if item.Status == models.ItemFailed {
					fmt.Printf("  %s: %s\n", item.EntityKey, item.ErrorMessage)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeKind, "kind", string(models.KindBasic),
		"data kind to collect (fund_basic, fund_daily, fund_holdings)")
}
