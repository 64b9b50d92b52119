package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func itemsCmd() *cobra.Command {
	itemsRoot := &cobra.Command{
		Use:   "items",
		Short: "Manage tracked items",
		Long: "Inspect and manage the listings the collector tracks, including\n" +
			"their collection state and price history.",
	}

	itemsRoot.AddCommand(
		itemsListCmd(),
		itemsGetCmd(),
		itemsEnableCmd(),
		itemsDisableCmd(),
		itemsHistoryCmd(),
	)

	return itemsRoot
}

func itemsListCmd() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked items",
		Example: `  price-collector items list
  price-collector items list --active --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			items, err := c.ListItems(context.Background(), activeOnly)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(items)
			}
			if len(items) == 0 {
				fmt.Println("No tracked items found.")
				return nil
			}
			return printItemsTable(items)
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only show active items")

	return cmd
}

func itemsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <store> <id>",
		Short: "Show tracked item details",
		Example: `  price-collector items get ebay 123456789012
  price-collector items get ebay 123456789012 --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			item, err := c.GetItem(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(item)
			}
			return printItemDetail(item)
		},
	}
}

func itemsEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "enable <store> <id>",
		Short:   "Resume collection for an item",
		Example: `  price-collector items enable ebay 123456789012`,
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runItemSetActive(args[0], args[1], true)
		},
	}
}

func itemsDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "disable <store> <id>",
		Short:   "Pause collection for an item",
		Example: `  price-collector items disable ebay 123456789012`,
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runItemSetActive(args[0], args[1], false)
		},
	}
}

func itemsHistoryCmd() *cobra.Command {
	var (
		historyDays  int
		historyLimit int
	)

	cmd := &cobra.Command{
		Use:   "history <store> <id>",
		Short: "Show price history for an item",
		Example: `  price-collector items history ebay 123456789012
  price-collector items history ebay 123456789012 --days 7 --limit 20`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			stats, err := c.GetHistory(
				context.Background(), args[0], args[1], historyDays, historyLimit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(stats)
			}
			return printHistoryStats(stats)
		},
	}
	cmd.Flags().IntVar(&historyDays, "days", 30, "history window in days")
	cmd.Flags().IntVar(&historyLimit, "limit", 100, "maximum records to return")

	return cmd
}

func runItemSetActive(store, itemID string, active bool) error {
	c := newClient()
	if err := c.SetItemActive(context.Background(), store, itemID, active); err != nil {
		return err
	}

	action := "enabled"
	if !active {
		action = "disabled"
	}
	fmt.Printf("Item %s/%s %s.\n", store, itemID, action)
	return nil
}

func init() {
	rootCmd.AddCommand(itemsCmd())
}
