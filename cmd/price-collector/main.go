// Package main is the entry point for the price-collector service and CLI.
package main

import (
	"github.com/pricewatch/price-collector/cmd/price-collector/cmd"
)

func main() {
	cmd.Execute()
}
