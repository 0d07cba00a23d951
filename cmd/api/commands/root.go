package commands

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/pkg/logger"
)

// rootCmd runs the API server when no subcommand is given
var rootCmd = &cobra.Command{
	Use:   "marketplace-api",
	Short: "Marketplace cart, wishlist and checkout API",
	Long: `Marketplace API serves carts, wishlists and Stripe-backed checkout for
freelance services and mentorship sessions.

Commands:
  serve    - Run the HTTP API (default)
  migrate  - Apply the schema and optionally seed development data
  token    - Mint a development access token`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

// bootstrap loads configuration and builds the process logger
func bootstrap() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
