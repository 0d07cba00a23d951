package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/your-org/marketplace-backend/internal/infrastructure/database/postgres"
)

var (
	// Migrate flags
	seed  bool
	reset bool
)

// migrateCmd applies the schema without starting the server
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the schema and indexes to the configured database.

Examples:
  marketplace-api migrate                 # Apply schema and indexes
  marketplace-api migrate --seed          # Also insert sample catalog data
  marketplace-api migrate --reset --seed  # Drop every table first (development only)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate()
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&seed, "seed", false, "Insert sample catalog data")
	migrateCmd.Flags().BoolVar(&reset, "reset", false, "Drop all tables before migrating (refused in production)")
}

func runMigrate() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	db, err := postgres.NewConnection(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	migration := postgres.NewMigration(db.GetDB(), log)

	if reset {
		if cfg.IsProduction() {
			return fmt.Errorf("refusing to drop tables in production")
		}
		if err := migration.DropAllTables(); err != nil {
			return err
		}
	}

	if err := migration.RunAutoMigrations(); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		log.WithError(err).Warn("⚠️ Index creation failed")
	}

	if seed {
		if err := migration.SeedInitialData(); err != nil {
			return fmt.Errorf("data seeding failed: %w", err)
		}
	}

	counts, err := migration.TableCounts()
	if err != nil {
		return err
	}
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		log.Infof("📊 %s: %d rows", table, counts[table])
	}

	log.Info("✅ Migrations completed")
	return nil
}
