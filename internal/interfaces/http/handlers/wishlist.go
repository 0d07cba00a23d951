// internal/interfaces/http/handlers/wishlist.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"github.com/your-org/marketplace-backend/internal/domain/wishlist"
)

// WishlistHandler handles wishlist endpoints
type WishlistHandler struct {
	wishlistService *wishlist.Service
	errors          errorResponder
}

// NewWishlistHandler creates a new wishlist handler
func NewWishlistHandler(wishlistService *wishlist.Service, cfg *config.Config, log logrus.FieldLogger) *WishlistHandler {
	return &WishlistHandler{
		wishlistService: wishlistService,
		errors:          errorResponder{config: cfg, log: log},
	}
}

// GetWishlist handles GET /wishlist
func (h *WishlistHandler) GetWishlist(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	resp, err := h.wishlistService.List(c.Request.Context(), userID)
	if err != nil {
		h.errors.respond(c, err, "Failed to retrieve wishlist")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist retrieved successfully",
		"data":    resp,
	})
}

// AddToWishlist handles POST /wishlist/items
func (h *WishlistHandler) AddToWishlist(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req wishlist.AddToWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	ref, err := purchasable.NewRef(req.Kind, req.ItemID)
	if err != nil {
		h.errors.respond(c, err, "Invalid item reference")
		return
	}

	entry, err := h.wishlistService.Add(c.Request.Context(), userID, ref)
	if err != nil {
		h.errors.respond(c, err, "Failed to add item to wishlist")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Item added to wishlist",
		"data":    entry,
	})
}

// RemoveFromWishlist handles DELETE /wishlist/items/:kind/:id
func (h *WishlistHandler) RemoveFromWishlist(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ref, ok := refFromPath(c)
	if !ok {
		return
	}

	removed, err := h.wishlistService.Remove(c.Request.Context(), userID, ref)
	if err != nil {
		h.errors.respond(c, err, "Failed to remove item from wishlist")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from wishlist",
		"removed": removed,
	})
}

// MoveToCart handles POST /wishlist/items/:kind/:id/move-to-cart
func (h *WishlistHandler) MoveToCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ref, ok := refFromPath(c)
	if !ok {
		return
	}

	var req wishlist.MoveToCartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request data", err)
			return
		}
	}

	entry, err := h.wishlistService.MoveToCart(c.Request.Context(), userID, ref, req.Quantity)
	if err != nil {
		h.errors.respond(c, err, "Failed to move item to cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item moved to cart",
		"data":    entry,
	})
}
