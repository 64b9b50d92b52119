// Package cmd implements the CLI commands for price-collector.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiclient "github.com/pricewatch/price-collector/internal/api/client"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "price-collector",
		Short: "Track marketplace listing prices over time",
		Long: "price-collector monitors marketplace listings, collects their prices\n" +
			"via store APIs with a scraping fallback, normalizes them into a single\n" +
			"currency, and fires alerts when prices drop.",
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().
		String("server", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().
		String("output", "table", "output format (table, json)")

	cobra.CheckErr(viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server")))
	cobra.CheckErr(viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output")))
}

func initConfig() {
	viper.SetEnvPrefix("PRICEWATCH")
	viper.AutomaticEnv()

	if _, err := os.Stat(cfgFile); err == nil {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "Warning: reading config:", err)
		}
	}
}

func newClient() *apiclient.Client {
	return apiclient.New(viper.GetString("server"))
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}
