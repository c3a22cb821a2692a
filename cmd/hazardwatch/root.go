package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "hazardwatch",
	Short: "Coastal hazard pattern analysis and early warning service",
	Long: "Hazardwatch ingests sea-state observations for monitored coastal sites,\n" +
		"runs pattern detectors over each site's recent history, and fuses the\n" +
		"verdicts with classifier label scores into hazard predictions with\n" +
		"early-warning lead times.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file found, using process environment")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
