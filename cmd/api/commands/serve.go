package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/your-org/marketplace-backend/internal/app"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/infrastructure/database/postgres"
	redisstore "github.com/your-org/marketplace-backend/internal/infrastructure/database/redis"
	"github.com/your-org/marketplace-backend/internal/infrastructure/messaging/kafka"
	"github.com/your-org/marketplace-backend/internal/infrastructure/messaging/rabbitmq"
	httpserver "github.com/your-org/marketplace-backend/internal/interfaces/http"
	"github.com/your-org/marketplace-backend/internal/pkg/auth"
	"github.com/your-org/marketplace-backend/internal/pkg/metrics"
	"github.com/your-org/marketplace-backend/internal/pkg/pdf"
)

var skipMigrations bool

// serveCmd runs the HTTP API and the catalog event consumer
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not migrate the schema on startup")
}

func runServe(cmd *cobra.Command) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	log.Infof("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewConnection(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := redisstore.NewConnection(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()

	if !skipMigrations {
		if err := migrate(cfg, log, db); err != nil {
			return err
		}
	}

	m := metrics.New()
	stripeProvider := payment.NewStripeProvider(cfg, log.WithField("component", "stripe"))

	opts := []checkout.Option{checkout.WithRecorder(m)}
	if len(cfg.External.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.External.Kafka, log.WithField("component", "kafka"))
		defer publisher.Close()
		opts = append(opts, checkout.WithPublisher(publisher))
		log.Infof("📨 Publishing payment events to %s", cfg.External.Kafka.PaymentTopic)
	}

	container := app.NewContainer(cfg, log, db.GetDB(), stripeProvider, opts...)

	if cfg.External.RabbitMQ.URL != "" {
		consumer := rabbitmq.NewConsumer(cfg.External.RabbitMQ, container.Cleaner, m, log.WithField("component", "rabbitmq"))
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start catalog event consumer: %w", err)
		}
		defer consumer.Close()
	} else {
		log.Warn("⚠️ RABBITMQ_URL not set, catalog deletions from other services will not purge carts")
	}

	handlers := container.Handlers(cfg, log, app.HTTPDeps{
		Idempotency: redisstore.NewIdempotencyStore(redisClient.GetClient(), cfg.Checkout.IdempotencyTTL),
		Receipts:    pdf.NewService(cfg),
		Webhooks:    stripeProvider,
	})

	server := httpserver.NewServer(cfg, log, httpserver.Deps{
		DB:          db.GetDB(),
		RedisClient: redisClient.GetClient(),
		Metrics:     m,
		JWT:         auth.NewJWTManager(cfg),
		Handlers:    handlers,
	})

	log.Info("✅ All systems operational!")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("👋 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shutdown HTTP server gracefully")
	}

	log.Info("✅ Server shutdown completed")
	return nil
}

func migrate(cfg *config.Config, log *logrus.Logger, db *postgres.DB) error {
	migration := postgres.NewMigration(db.GetDB(), log)

	if err := migration.RunAutoMigrations(); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		log.WithError(err).Warn("⚠️ Index creation failed")
	}

	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			log.WithError(err).Warn("⚠️ Data seeding failed")
		}
	}
	return nil
}
