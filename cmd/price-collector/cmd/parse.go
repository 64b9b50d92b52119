package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pricewatch/price-collector/internal/ebay"
)

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <url>",
		Short: "Parse a product URL locally",
		Long: "Parse a product URL into its store and item id without contacting\n" +
			"the API server.",
		Example: `  price-collector parse "https://www.ebay.com/itm/123456789012"
  price-collector parse "https://www.ebay.co.uk/itm/cool-gadget/234567890123" --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			result := ebay.ParseURL(args[0])
			if jsonOutput() {
				return outputJSON(result)
			}

			tw := newTabWriter(os.Stdout)
			tw.writef("Success:\t%v\n", result.Success)
			if !result.Success {
				tw.writef("Error Code:\t%s\n", result.ErrorCode)
				tw.writef("Error:\t%s\n", result.Error)
				return tw.finish()
			}
			tw.writef("Store:\t%s\n", result.Store)
			tw.writef("Item ID:\t%s\n", result.ItemID)
			tw.writef("Canonical URL:\t%s\n", result.CanonicalURL)
			return tw.finish()
		},
	}
}

func init() {
	rootCmd.AddCommand(parseCmd())
}
