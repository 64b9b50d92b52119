package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apiclient "github.com/pricewatch/price-collector/internal/api/client"
)

func collectCmd() *cobra.Command {
	var (
		collectURL    string
		collectStore  string
		collectItemID string
		noFallback    bool
		noSave        bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect a price on demand",
		Long: "Collect the current price for a listing through the running API\n" +
			"server. Identify the listing either by product URL or by an explicit\n" +
			"store and item id pair.",
		Example: `  price-collector collect --url "https://www.ebay.com/itm/123456789012"
  price-collector collect --store ebay --id 123456789012
  price-collector collect --store ebay --id 123456789012 --no-save --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if collectURL == "" && (collectStore == "" || collectItemID == "") {
				return fmt.Errorf("either --url or both --store and --id are required")
			}

			req := apiclient.CollectRequest{
				URL:    collectURL,
				Store:  collectStore,
				ItemID: collectItemID,
			}
			if noFallback {
				fallback := false
				req.UseFallback = &fallback
			}
			if noSave {
				save := false
				req.Save = &save
			}

			c := newClient()
			result, err := c.Collect(context.Background(), req)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(result)
			}
			return printCollectionResult(result)
		},
	}

	cmd.Flags().StringVar(&collectURL, "url", "", "product URL")
	cmd.Flags().StringVar(&collectStore, "store", "", "store name (ebay)")
	cmd.Flags().StringVar(&collectItemID, "id", "", "store item id")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "disable the scraper fallback")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the result")

	return cmd
}

func init() {
	rootCmd.AddCommand(collectCmd())
}
