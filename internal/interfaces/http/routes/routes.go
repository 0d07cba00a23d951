// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/handlers"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
	"github.com/your-org/marketplace-backend/internal/pkg/auth"
)

// Handlers groups every API handler
type Handlers struct {
	Cart     *handlers.CartHandler
	Wishlist *handlers.WishlistHandler
	Checkout *handlers.CheckoutHandler
	Payment  *handlers.PaymentHandler
	Webhook  *handlers.WebhookHandler
	Catalog  *handlers.CatalogHandler
}

// SetupRoutes mounts the API under rg. rateLimit may be nil.
func SetupRoutes(rg *gin.RouterGroup, h *Handlers, jwtManager *auth.JWTManager, rateLimit gin.HandlerFunc) {
	// Provider callbacks are signature-verified instead of authenticated
	SetupWebhookRoutes(rg, h)

	public := rg.Group("")
	protected := rg.Group("")
	protected.Use(middleware.AuthMiddleware(jwtManager))
	if rateLimit != nil {
		public.Use(rateLimit)
		protected.Use(rateLimit)
	}

	SetupCatalogRoutes(public, protected, h)
	SetupCartRoutes(protected, h)
	SetupWishlistRoutes(protected, h)
	SetupCheckoutRoutes(protected, h)
	SetupPaymentRoutes(protected, h)
}

// SetupWebhookRoutes sets up provider webhook routes
func SetupWebhookRoutes(rg *gin.RouterGroup, h *Handlers) {
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/stripe", h.Webhook.StripeWebhook)
	}
}

// SetupCatalogRoutes sets up service listing and mentorship routes
func SetupCatalogRoutes(public, protected *gin.RouterGroup, h *Handlers) {
	public.GET("/services", h.Catalog.ListServices)
	public.GET("/services/:id", h.Catalog.GetService)
	public.GET("/mentorships", h.Catalog.ListMentorships)
	public.GET("/mentorships/:id", h.Catalog.GetMentorship)

	sellers := protected.Group("")
	sellers.Use(middleware.RequireRole(auth.RoleFreelancer))
	{
		sellers.POST("/services", h.Catalog.CreateService)
		sellers.DELETE("/services/:id", h.Catalog.DeleteService)
		sellers.POST("/mentorships", h.Catalog.CreateMentorship)
		sellers.DELETE("/mentorships/:id", h.Catalog.DeleteMentorship)
	}
}

// SetupCartRoutes sets up cart routes
func SetupCartRoutes(rg *gin.RouterGroup, h *Handlers) {
	cart := rg.Group("/cart")
	{
		cart.GET("", h.Cart.GetCart)
		cart.GET("/count", h.Cart.GetCartCount)
		cart.POST("/items", h.Cart.AddToCart)
		cart.DELETE("/items/:kind/:id", h.Cart.RemoveFromCart)
		cart.DELETE("", h.Cart.ClearCart)
	}
}

// SetupWishlistRoutes sets up wishlist routes
func SetupWishlistRoutes(rg *gin.RouterGroup, h *Handlers) {
	wishlist := rg.Group("/wishlist")
	{
		wishlist.GET("", h.Wishlist.GetWishlist)
		wishlist.POST("/items", h.Wishlist.AddToWishlist)
		wishlist.DELETE("/items/:kind/:id", h.Wishlist.RemoveFromWishlist)
		wishlist.POST("/items/:kind/:id/move-to-cart", h.Wishlist.MoveToCart)
	}
}

// SetupCheckoutRoutes sets up checkout routes
func SetupCheckoutRoutes(rg *gin.RouterGroup, h *Handlers) {
	checkout := rg.Group("/checkout")
	{
		checkout.POST("", h.Checkout.CreateCheckout)
		checkout.GET("/success", h.Checkout.Success)
		checkout.GET("/cancel", h.Checkout.Cancel)
	}
}

// SetupPaymentRoutes sets up payment history routes
func SetupPaymentRoutes(rg *gin.RouterGroup, h *Handlers) {
	payments := rg.Group("/payments")
	{
		payments.GET("", h.Payment.ListPayments)
		payments.GET("/:id", h.Payment.GetPayment)
		payments.GET("/:id/receipt", h.Payment.DownloadReceipt)
	}
}
