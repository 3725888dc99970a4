package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nesemu/nesfetch/internal/config"
	"github.com/nesemu/nesfetch/internal/mapper"
	"github.com/nesemu/nesfetch/internal/report"
	"github.com/spf13/cobra"
)

func newMappersCmd() *cobra.Command {
	var configPath string
	var origin string
	var ids int
	var head int
	var concurrency int
	var reportPath string
	var parquetPath string

	cmd := &cobra.Command{
		Use:   "mappers",
		Short: "Count games per iNES mapper",
		Long: `Fetches the NES directory page of every iNES mapper id, counts the games
listed on each and prints the total along with the share covered by the
first mappers.`,
		Example: `  # Count all 256 mappers
  nesfetch mappers

  # Export the counts as parquet as well
  nesfetch mappers --parquet mappers.parquet --report reports/mappers.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("docs-origin") {
				cfg.Mappers.Origin = origin
			}
			if flags.Changed("ids") {
				cfg.Mappers.IDs = ids
			}
			if flags.Changed("head") {
				cfg.Mappers.Head = head
			}
			if flags.Changed("concurrency") {
				cfg.Mappers.Concurrency = concurrency
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return executeMappers(cmd, cfg, reportPath, parquetPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&origin, "docs-origin", "", "NES directory origin (defaults to https://nesdir.github.io)")
	cmd.Flags().IntVar(&ids, "ids", mapper.DefaultIDs, "Number of mapper ids to count, starting at 0")
	cmd.Flags().IntVar(&head, "head", mapper.DefaultHead, "Number of leading mappers in the coverage share")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum pages in flight (0 for no limit)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a YAML summary to this path")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "Export per-mapper counts as parquet to this path")

	return cmd
}

func executeMappers(cmd *cobra.Command, cfg *config.Config, reportPath, parquetPath string) error {
	slog.Info("Starting mapper count", "origin", cfg.Mappers.Origin, "ids", cfg.Mappers.IDs)

	counter := mapper.NewCounter(mapper.Options{
		Origin:      cfg.Mappers.Origin,
		IDs:         cfg.Mappers.IDs,
		Head:        cfg.Mappers.Head,
		Concurrency: cfg.Mappers.Concurrency,
		HTTP:        cfg.Session(),
	})

	summary, err := counter.CountAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count mappers: %w", err)
	}

	if reportPath != "" {
		if err := report.SaveYAML(reportPath, report.FromSummary(summary)); err != nil {
			return err
		}
		slog.Info("Report saved", "path", reportPath)
	}

	if parquetPath != "" {
		if err := report.SaveParquet(parquetPath, summary); err != nil {
			return err
		}
		slog.Info("Parquet export saved", "path", parquetPath)
	}

	if err := summary.WriteText(cmd.OutOrStdout()); err != nil {
		if errors.Is(err, mapper.ErrZeroTotal) {
			return fmt.Errorf("cannot compute %s coverage: %w", summary.HeadLabel(), err)
		}
		return err
	}
	return nil
}
