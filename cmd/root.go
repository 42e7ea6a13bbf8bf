package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/flipbook/internal/logging"
)

func NewRootCmd() *cobra.Command {
	var (
		logLevel string
		logJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "flipbook",
		Short: "Page-flip viewer for digitized books and magazines",
		Long: `Flipbook serves scanned books and magazines as an interactive page-flip
viewer and prepares their page images.

The conversion commands render a PDF into page images, split scanned
two-page spreads into single pages and keep the book catalog in sync.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if !cmd.Flags().Changed("log-level") {
				logLevel = envOr("FLIPBOOK_LOG_LEVEL", logLevel)
			}
			return logging.Setup(logLevel, logJSON)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error) [env FLIPBOOK_LOG_LEVEL]")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConvertCmd())
	cmd.AddCommand(newSplitSpreadsCmd())
	cmd.AddCommand(newSplitTempPagesCmd())
	cmd.AddCommand(newCatalogCmd())

	return cmd
}

// envOr returns the environment value of key, or def when it is unset
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
