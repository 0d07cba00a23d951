// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/catalog"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/wishlist"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, log logrus.FieldLogger) *Migration {
	return &Migration{
		db:  db,
		log: log,
	}
}

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		// Catalog domain
		&catalog.ServiceListing{},
		&catalog.MentorshipSession{},

		// Buyer collections
		&cart.CartEntry{},
		&wishlist.WishlistEntry{},

		// Payment domain
		&payment.Record{},
		&payment.LineItem{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.log.Info("🔄 Running database auto-migrations...")

	for _, model := range Models() {
		m.log.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.log.Info("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates the indexes gorm tags cannot express
func (m *Migration) CreateIndexes() error {
	m.log.Info("🔄 Creating additional database indexes...")

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_cart_entries_user_added ON cart_entries(user_id, added_at)",
		"CREATE INDEX IF NOT EXISTS idx_wishlist_entries_user_added ON wishlist_entries(user_id, added_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_payment_records_created_at ON payment_records(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_payment_line_items_payment ON payment_line_items(payment_id, position)",
		"CREATE INDEX IF NOT EXISTS idx_service_listings_active ON service_listings(is_active, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_mentorship_sessions_start ON mentorship_sessions(start_time)",
	}

	failCount := 0
	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.log.WithError(err).Warn("⚠️ Failed to create index")
			failCount++
		}
	}

	m.log.Infof("✅ Created %d indexes successfully (%d failed)", len(indexes)-failCount, failCount)
	if failCount > 0 {
		return fmt.Errorf("%d indexes failed", failCount)
	}
	return nil
}

// SeedInitialData inserts a small catalog for local development. It is a
// no-op once any service listing exists.
func (m *Migration) SeedInitialData() error {
	var count int64
	if err := m.db.Model(&catalog.ServiceListing{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count services: %w", err)
	}
	if count > 0 {
		m.log.Info("📦 Catalog already seeded, skipping")
		return nil
	}

	m.log.Info("🌱 Seeding development catalog...")

	freelancer := uuid.MustParse("00000000-0000-4000-8000-000000000001")
	services := []catalog.ServiceListing{
		{
			FreelancerID: freelancer,
			Category:     "design",
			Title:        "Logo design",
			Description:  "Three logo concepts with two rounds of revisions.",
			Price:        decimal.RequireFromString("20.00"),
			DeliveryDays: 5,
			IsActive:     true,
		},
		{
			FreelancerID: freelancer,
			Category:     "development",
			Title:        "Landing page build",
			Description:  "Responsive single-page site from your design.",
			Price:        decimal.RequireFromString("150.00"),
			DeliveryDays: 10,
			IsActive:     true,
		},
	}

	mentorship := catalog.MentorshipSession{
		MentorID:        freelancer,
		Topic:           "Go concurrency",
		StartTime:       time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour),
		DurationMinutes: 18,
		RatePerMinute:   decimal.RequireFromString("2.50"),
		Status:          catalog.MentorshipStatusOpen,
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&services).Error; err != nil {
			return fmt.Errorf("failed to seed services: %w", err)
		}
		if err := tx.Create(&mentorship).Error; err != nil {
			return fmt.Errorf("failed to seed mentorship: %w", err)
		}
		m.log.Infof("✅ Seeded %d services and 1 mentorship session", len(services))
		return nil
	})
}

// DropAllTables drops all tables (use with extreme caution)
func (m *Migration) DropAllTables() error {
	m.log.Warn("⚠️ WARNING: Dropping all database tables...")

	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := m.db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop %T: %w", models[i], err)
		}
	}

	m.log.Info("✅ All tables dropped successfully")
	return nil
}

// TableCounts returns the row count of every migrated table
func (m *Migration) TableCounts() (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: m.db}
		if err := stmt.Parse(model); err != nil {
			return nil, err
		}

		var count int64
		if err := m.db.Table(stmt.Schema.Table).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", stmt.Schema.Table, err)
		}
		counts[stmt.Schema.Table] = count
	}
	return counts, nil
}
