package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fundscraper/pkg/models"
)

// fundsCmd groups reference-data imports.
var fundsCmd = &cobra.Command{
	Use:   "funds",
	Short: "Import fund and company reference data",
}

var fundsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the full fund code catalog",
	Long: `Fetch the fund code catalog and merge it into the local reference
store. Existing rows are updated in place when the source changed them;
the summary reports how many rows were new versus updated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, store, _, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := service.ImportFunds(models.SourceEastmoney)
		if err != nil {
			return fmt.Errorf("fund import failed: %w", err)
		}

		fmt.Printf("Imported %d funds: %d added, %d updated\n",
			result.TotalCount, result.AddedCount, result.UpdatedCount)
		return nil
	},
}

var fundsCompaniesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Import the fund company listing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, store, _, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := service.ImportCompanies(models.SourceEastmoney)
		if err != nil {
			return fmt.Errorf("company import failed: %w", err)
		}

		fmt.Printf("Imported %d companies: %d added, %d updated\n",
			result.TotalCount, result.AddedCount, result.UpdatedCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fundsCmd)
	fundsCmd.AddCommand(fundsImportCmd)
	fundsCmd.AddCommand(fundsCompaniesCmd)
}
