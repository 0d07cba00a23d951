// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	cartService *cart.Service
	errors      errorResponder
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service, cfg *config.Config, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		errors:      errorResponder{config: cfg, log: log},
	}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	cartResponse, err := h.cartService.List(c.Request.Context(), userID)
	if err != nil {
		h.errors.respond(c, err, "Failed to retrieve cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    cartResponse,
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req cart.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	ref, err := purchasable.NewRef(req.Kind, req.ItemID)
	if err != nil {
		h.errors.respond(c, err, "Invalid item reference")
		return
	}

	entry, err := h.cartService.Add(c.Request.Context(), userID, ref, req.Quantity)
	if err != nil {
		h.errors.respond(c, err, "Failed to add item to cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    entry,
	})
}

// RemoveFromCart handles DELETE /cart/items/:kind/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ref, ok := refFromPath(c)
	if !ok {
		return
	}

	removed, err := h.cartService.Remove(c.Request.Context(), userID, ref)
	if err != nil {
		h.errors.respond(c, err, "Failed to remove item from cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart",
		"removed": removed,
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	removed, err := h.cartService.Clear(c.Request.Context(), userID)
	if err != nil {
		h.errors.respond(c, err, "Failed to clear cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
		"removed": removed,
	})
}

// GetCartCount handles GET /cart/count
func (h *CartHandler) GetCartCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.cartService.Count(c.Request.Context(), userID)
	if err != nil {
		h.errors.respond(c, err, "Failed to count cart items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{"count": count},
	})
}
