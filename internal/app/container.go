// Package app wires the domain services together. cmd/api and the HTTP
// tests build the same graph through it.
package app

import (
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/catalog"
	"github.com/your-org/marketplace-backend/internal/domain/checkout"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"github.com/your-org/marketplace-backend/internal/domain/wishlist"
	redisstore "github.com/your-org/marketplace-backend/internal/infrastructure/database/redis"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/handlers"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/routes"
	"gorm.io/gorm"
)

// Container holds one instance of every domain service
type Container struct {
	Registry  *purchasable.Registry
	Carts     *cart.Service
	Wishlists *wishlist.Service
	Cleaner   *cart.Cleaner
	Catalog   *catalog.Service
	Checkout  *checkout.Service
}

// NewContainer builds the service graph over db and provider
func NewContainer(cfg *config.Config, log logrus.FieldLogger, db *gorm.DB, provider payment.Provider, opts ...checkout.Option) *Container {
	registry := purchasable.NewRegistry()

	carts := cart.NewService(db, registry, log.WithField("service", "cart"))
	wishlists := wishlist.NewService(db, registry, carts, log.WithField("service", "wishlist"))
	cleaner := cart.NewCleaner(db, log.WithField("service", "cleanup"), carts.Store(), wishlists)

	catalogService := catalog.NewService(db, cfg, log.WithField("service", "catalog"), cleaner)
	catalogService.RegisterResolvers(registry)

	checkoutService := checkout.NewService(db, cfg, carts, registry, provider, log.WithField("service", "checkout"), opts...)

	return &Container{
		Registry:  registry,
		Carts:     carts,
		Wishlists: wishlists,
		Cleaner:   cleaner,
		Catalog:   catalogService,
		Checkout:  checkoutService,
	}
}

// HTTPDeps are the HTTP collaborators that live outside the domain
type HTTPDeps struct {
	Idempotency *redisstore.IdempotencyStore
	Receipts    handlers.ReceiptRenderer
	Webhooks    handlers.WebhookParser
}

// Handlers builds the API handlers over the container's services
func (c *Container) Handlers(cfg *config.Config, log logrus.FieldLogger, deps HTTPDeps) *routes.Handlers {
	return &routes.Handlers{
		Cart:     handlers.NewCartHandler(c.Carts, cfg, log),
		Wishlist: handlers.NewWishlistHandler(c.Wishlists, cfg, log),
		Checkout: handlers.NewCheckoutHandler(c.Checkout, deps.Idempotency, cfg, log),
		Payment:  handlers.NewPaymentHandler(c.Checkout, deps.Receipts, cfg, log),
		Webhook:  handlers.NewWebhookHandler(c.Checkout, deps.Webhooks, cfg, log),
		Catalog:  handlers.NewCatalogHandler(c.Catalog, cfg, log),
	}
}
