package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printItemsTable(items []domain.TrackedItem) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("STORE\tITEM ID\tTITLE\tCONDITION\tACTIVE\tLAST COLLECTED\n")
	for i := range items {
		it := &items[i]
		last := "-"
		if it.LastCollectedAt != nil {
			last = it.LastCollectedAt.Format("2006-01-02 15:04:05")
		}
		tw.writef("%s\t%s\t%s\t%s\t%v\t%s\n",
			it.Store,
			it.ItemID,
			truncate(it.Title, 40),
			it.Condition,
			it.IsActive,
			last,
		)
	}
	return tw.finish()
}

func printItemDetail(it *domain.TrackedItem) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("Store:\t%s\n", it.Store)
	tw.writef("Item ID:\t%s\n", it.ItemID)
	tw.writef("Title:\t%s\n", it.Title)
	if it.SellerName != "" {
		tw.writef("Seller:\t%s\n", it.SellerName)
	}
	tw.writef("Condition:\t%s\n", it.Condition)
	tw.writef("Listing:\t%s\n", it.ListingType)
	tw.writef("Active:\t%v\n", it.IsActive)
	tw.writef("Errors:\t%d\n", it.CollectionErrorCount)
	if it.LastCollectedAt != nil {
		tw.writef("Last Collected:\t%s\n", it.LastCollectedAt.Format("2006-01-02 15:04:05"))
	}
	tw.writef("URL:\t%s\n", it.ItemURL)
	return tw.finish()
}

func printHistoryStats(s *domain.PriceHistoryStats) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("Store:\t%s\n", s.Store)
	tw.writef("Item ID:\t%s\n", s.ItemID)
	if s.Title != "" {
		tw.writef("Title:\t%s\n", s.Title)
	}
	tw.writef("Records:\t%d\n", s.TotalRecords)
	if s.CurrentPrice != nil {
		tw.writef("Current:\t%.2f %s\n", s.CurrentPrice.TotalPrice, s.CurrentPrice.Currency)
	}
	if s.LowestPrice != nil {
		tw.writef("Lowest:\t%.2f %s\n", s.LowestPrice.TotalPrice, s.LowestPrice.Currency)
	}
	if s.HighestPrice != nil {
		tw.writef("Highest:\t%.2f %s\n", s.HighestPrice.TotalPrice, s.HighestPrice.Currency)
	}
	if s.AveragePrice > 0 {
		tw.writef("Average:\t%.2f\n", s.AveragePrice)
	}
	if s.PriceChange24h != nil {
		tw.writef("24h Change:\t%+.2f\n", *s.PriceChange24h)
	}
	if s.PriceChangePct24h != nil {
		tw.writef("24h Change %%:\t%+.2f%%\n", *s.PriceChangePct24h)
	}
	if err := tw.finish(); err != nil {
		return err
	}
	if len(s.History) == 0 {
		return nil
	}

	fmt.Println()
	tw = newTabWriter(os.Stdout)
	tw.writef("COLLECTED\tPRICE\tSHIPPING\tTOTAL\tCURRENCY\tMETHOD\n")
	for i := range s.History {
		r := &s.History[i]
		tw.writef("%s\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			r.CollectedAt.Format("2006-01-02 15:04:05"),
			r.NormalizedPrice,
			r.ShippingFee,
			r.NormalizedTotal,
			r.NormalizedCurrency,
			r.CollectionMethod,
		)
	}
	return tw.finish()
}

func printCollectionResult(r *domain.CollectionResult) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("Store:\t%s\n", r.Store)
	tw.writef("Item ID:\t%s\n", r.ItemID)
	tw.writef("Success:\t%v\n", r.Success)
	tw.writef("Method:\t%s\n", r.CollectionMethod)
	if !r.Success {
		tw.writef("Error Code:\t%s\n", r.ErrorCode)
		tw.writef("Error:\t%s\n", r.ErrorMessage)
		return tw.finish()
	}
	if r.Metadata != nil {
		tw.writef("Title:\t%s\n", r.Metadata.Title)
		tw.writef("Condition:\t%s\n", r.Metadata.Condition)
	}
	if r.PriceData != nil {
		tw.writef("Price:\t%.2f %s\n", r.PriceData.Price, r.PriceData.Currency)
		tw.writef("Shipping:\t%.2f\n", r.PriceData.ShippingFee)
		tw.writef("Total:\t%.2f %s\n", r.PriceData.TotalPrice, r.PriceData.Currency)
	}
	if r.NormalizedPrice != nil {
		tw.writef("Normalized:\t%.2f %s\n",
			r.NormalizedPrice.NormalizedTotal, r.NormalizedPrice.Currency)
	}
	if r.BidCount != nil {
		tw.writef("Bids:\t%d\n", *r.BidCount)
	}
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
