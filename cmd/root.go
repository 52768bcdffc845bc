// Package cmd wires the command-line interface.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/newsloom/newsloom/internal/app"
	"github.com/newsloom/newsloom/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "newsloom",
	Short: "Article crawler and ingestion service",
	Long: `newsloom crawls a paginated article listing with a headless
browser, ingests the results into Postgres with dedup on natural keys,
and serves the collected articles over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"path to a config file (defaults to env-only configuration)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(crawlCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildApp loads configuration and assembles the component graph.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
