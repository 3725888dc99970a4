package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "nesfetch",
		Short: "Fetch NES ROMs from nesfiles.com and count games per iNES mapper",
		Long: `nesfetch downloads every game listed on the nesfiles.com catalog into a local
directory, skipping files that are already present.

It can also count how many games the NES directory lists for each iNES mapper.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newMappersCmd())

	return cmd
}
