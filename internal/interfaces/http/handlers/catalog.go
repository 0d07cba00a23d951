package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/catalog"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
)

// CatalogHandler handles service listing and mentorship endpoints
type CatalogHandler struct {
	catalogService *catalog.Service
	errors         errorResponder
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *catalog.Service, cfg *config.Config, log logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		errors:         errorResponder{config: cfg, log: log},
	}
}

// CreateService handles POST /services
func (h *CatalogHandler) CreateService(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req catalog.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	listing, err := h.catalogService.CreateService(c.Request.Context(), userID, &req)
	if err != nil {
		h.errors.respond(c, err, "Failed to create service")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Service created successfully",
		"data":    listing,
	})
}

// ListServices handles GET /services
func (h *CatalogHandler) ListServices(c *gin.Context) {
	var req catalog.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	listings, pagination, err := h.catalogService.ListServices(c.Request.Context(), &req)
	if err != nil {
		h.errors.respond(c, err, "Failed to retrieve services")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       listings,
		"pagination": pagination,
	})
}

// GetService handles GET /services/:id
func (h *CatalogHandler) GetService(c *gin.Context) {
	id, ok := idFromPath(c, "id")
	if !ok {
		return
	}

	listing, err := h.catalogService.GetService(c.Request.Context(), id)
	if err != nil {
		h.errors.respond(c, err, "Failed to retrieve service")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listing})
}

// DeleteService handles DELETE /services/:id
func (h *CatalogHandler) DeleteService(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idFromPath(c, "id")
	if !ok {
		return
	}

	err := h.catalogService.DeleteService(c.Request.Context(), userID, middleware.IsAdminFromContext(c), id)
	if err != nil {
		h.errors.respond(c, err, "Failed to delete service")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Service deleted successfully"})
}

// CreateMentorship handles POST /mentorships
func (h *CatalogHandler) CreateMentorship(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req catalog.CreateMentorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	session, err := h.catalogService.CreateMentorship(c.Request.Context(), userID, &req)
	if err != nil {
		h.errors.respond(c, err, "Failed to create mentorship session")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Mentorship session created successfully",
		"data":    session,
	})
}

// ListMentorships handles GET /mentorships
func (h *CatalogHandler) ListMentorships(c *gin.Context) {
	var req catalog.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	sessions, pagination, err := h.catalogService.ListMentorships(c.Request.Context(), &req)
	if err != nil {
		h.errors.respond(c, err, "Failed to retrieve mentorship sessions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       sessions,
		"pagination": pagination,
	})
}

// GetMentorship handles GET /mentorships/:id
func (h *CatalogHandler) GetMentorship(c *gin.Context) {
	id, ok := idFromPath(c, "id")
	if !ok {
		return
	}

	session, err := h.catalogService.GetMentorship(c.Request.Context(), id)
	if err != nil {
		h.errors.respond(c, err, "Failed to retrieve mentorship session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": session})
}

// DeleteMentorship handles DELETE /mentorships/:id
func (h *CatalogHandler) DeleteMentorship(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idFromPath(c, "id")
	if !ok {
		return
	}

	err := h.catalogService.DeleteMentorship(c.Request.Context(), userID, middleware.IsAdminFromContext(c), id)
	if err != nil {
		h.errors.respond(c, err, "Failed to delete mentorship session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mentorship session deleted successfully"})
}
