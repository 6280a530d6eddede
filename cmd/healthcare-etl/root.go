package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "healthcare-etl",
	Short: "Consent-gated healthcare ETL pipeline service",
	Long: `healthcare-etl runs FHIR patient batches through a dependency-graph
ETL pipeline (extract, validate, consent gate, transform, load) with PHI
encrypted before it touches storage.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
}
