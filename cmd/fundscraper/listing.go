package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fundscraper/pkg/models"
)

var (
	listingRankType string
	listingMaxPages int
)

// listingCmd walks the paginated fund ranking and stores structured rows.
var listingCmd = &cobra.Command{
	Use:   "listing",
	Short: "Collect the open-fund ranking listing",
	Long: `Walk every page of the fund ranking listing, parse the rows and store
them keyed by fund, rank type and date. Re-running on the same day
refreshes the figures in place.`,
	Example: `  # Collect the full ranking
  fundscraper listing

  # Only the first two pages
  fundscraper listing --max-pages 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, store, cfg, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		maxPages := listingMaxPages
		if maxPages == 0 {
			maxPages = cfg.Collector.MaxPages
		}

		result, err := service.CollectListing(models.SourceEastmoney, listingRankType, maxPages)
		if err != nil {
			return fmt.Errorf("listing collection failed: %w", err)
		}

		fmt.Printf("Collected %d of %d entries (%d/%d pages", len(result.Entries),
			result.TotalCount, result.PagesOK, result.PagesTotal)
		if result.PagesFailed > 0 {
			fmt.Printf(", %d failed", result.PagesFailed)
		}
		if result.FailedRows > 0 {
			fmt.Printf(", %d malformed rows skipped", result.FailedRows)
		}
		fmt.Println(")")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listingCmd)

	listingCmd.Flags().StringVar(&listingRankType, "rank-type", "all", "fund category to rank (all, equity, mixed, bond, index, qdii, fof)")
	listingCmd.Flags().IntVar(&listingMaxPages, "max-pages", 0, "cap the number of pages fetched (0 = no cap)")
}
