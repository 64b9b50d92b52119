package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

func alertsCmd() *cobra.Command {
	alertsRoot := &cobra.Command{
		Use:   "alerts",
		Short: "Manage price alerts",
	}

	alertsRoot.AddCommand(alertsAddCmd())

	return alertsRoot
}

func alertsAddCmd() *cobra.Command {
	var (
		alertStore  string
		alertItemID string
		alertTarget float64
		alertDrop   float64
		alertNotify string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a price alert",
		Long: "Create a one-shot price alert for a tracked item. The alert fires\n" +
			"when the current total price reaches the target, or when it has\n" +
			"dropped by the given percentage from the first recorded price.",
		Example: `  price-collector alerts add --store ebay --id 123456789012 --target 150
  price-collector alerts add --store ebay --id 123456789012 --drop 20`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if alertStore == "" || alertItemID == "" {
				return fmt.Errorf("--store and --id are required")
			}
			if alertTarget <= 0 && alertDrop <= 0 {
				return fmt.Errorf("at least one of --target or --drop is required")
			}

			a := &domain.PriceAlert{
				Store:              domain.StoreType(alertStore),
				ItemID:             alertItemID,
				NotificationTarget: alertNotify,
				IsActive:           true,
			}
			if alertTarget > 0 {
				a.TargetPrice = &alertTarget
			}
			if alertDrop > 0 {
				a.PriceDropPercentage = &alertDrop
			}

			c := newClient()
			created, err := c.CreateAlert(context.Background(), a)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(created)
			}
			fmt.Printf("Alert created for %s/%s (id %d).\n",
				created.Store, created.ItemID, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&alertStore, "store", "", "store name (ebay)")
	cmd.Flags().StringVar(&alertItemID, "id", "", "store item id")
	cmd.Flags().Float64Var(&alertTarget, "target", 0, "target total price")
	cmd.Flags().Float64Var(&alertDrop, "drop", 0, "price drop percentage")
	cmd.Flags().StringVar(&alertNotify, "notify", "", "notification target override")

	return cmd
}

func init() {
	rootCmd.AddCommand(alertsCmd())
}
