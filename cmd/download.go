package cmd

import (
	"fmt"
	"log/slog"

	"github.com/nesemu/nesfetch/internal/config"
	"github.com/nesemu/nesfetch/internal/pipeline"
	"github.com/nesemu/nesfetch/internal/report"
	"github.com/spf13/cobra"
)

func newDownloadCmd() *cobra.Command {
	var configPath string
	var dest string
	var origin string
	var catalogPath string
	var concurrency int
	var reportPath string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download every game listed on the catalog page",
		Long: `Fetches the catalog page, resolves each listed game to its download link and
stores the ROM in the destination directory.

Files that already exist are never overwritten. Every game is processed
concurrently; use --concurrency to cap the number of games in flight.`,
		Example: `  # Download into the default directory
  nesfetch download

  # Download into a custom directory, 16 games at a time, with a report
  nesfetch download --dest ./roms --concurrency 16 --report reports/download.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("dest") {
				cfg.Download.Destination = dest
			}
			if flags.Changed("origin") {
				cfg.Download.Origin = origin
			}
			if flags.Changed("catalog-path") {
				cfg.Download.CatalogPath = catalogPath
			}
			if flags.Changed("concurrency") {
				cfg.Download.Concurrency = concurrency
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return executeDownload(cmd, cfg, reportPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&dest, "dest", config.DefaultDestination, "Existing directory to store ROMs in")
	cmd.Flags().StringVar(&origin, "origin", "", "Site origin (defaults to https://www.nesfiles.com)")
	cmd.Flags().StringVar(&catalogPath, "catalog-path", "", "Catalog page path (defaults to /Games)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum games in flight (0 for no limit)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a YAML outcome report to this path")

	return cmd
}

func executeDownload(cmd *cobra.Command, cfg *config.Config, reportPath string) error {
	dest := config.ExpandHome(cfg.Download.Destination)
	slog.Info("Starting download", "origin", cfg.Download.Origin, "dest", dest, "concurrency", cfg.Download.Concurrency)

	p := pipeline.New(pipeline.Options{
		Origin:      cfg.Download.Origin,
		CatalogPath: cfg.Download.CatalogPath,
		Destination: dest,
		Concurrency: cfg.Download.Concurrency,
		HTTP:        cfg.Session(),
	})

	result, runErr := p.Run(cmd.Context())
	if result == nil {
		return runErr
	}

	if reportPath != "" {
		if err := report.SaveYAML(reportPath, report.FromPipeline(result)); err != nil {
			slog.Error("Failed to save report", "path", reportPath, "error", err)
		} else {
			slog.Info("Report saved", "path", reportPath)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nDownload complete!\n")
	fmt.Fprintf(out, "  Entries: %d\n", len(result.Outcomes))
	fmt.Fprintf(out, "  Stored: %d\n", result.Count(pipeline.StatusStored))
	fmt.Fprintf(out, "  Skipped (already exists): %d\n", result.Count(pipeline.StatusSkipped))
	fmt.Fprintf(out, "  Dropped (no unique link): %d\n", result.Count(pipeline.StatusDropped))
	fmt.Fprintf(out, "  Directory missing: %d\n", result.Count(pipeline.StatusDirectoryMissing))
	fmt.Fprintf(out, "  Errors: %d\n", result.Count(pipeline.StatusFailed))
	fmt.Fprintf(out, "  Output location: %s\n", dest)

	return runErr
}
