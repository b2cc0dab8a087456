package handlers

import (
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CategoryHandler exposes vehicle categories: public listing for
// passengers and CRUD for admins.
type CategoryHandler struct {
	categories services.CategoryService
	logger     *logger.Logger
}

func NewCategoryHandler(categories services.CategoryService, log *logger.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		logger:     log,
	}
}

// List returns active categories. Admins may pass all=true to include
// deactivated ones.
func (h *CategoryHandler) List(c *gin.Context) {
	activeOnly := c.Query("all") != "true"

	categories, err := h.categories.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "vehicle categories", categories)
}

func (h *CategoryHandler) Get(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	category, err := h.categories.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "vehicle category", category)
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var category models.VehicleCategory
	if err := c.ShouldBindJSON(&category); err != nil {
		utils.BadRequestResponse(c, "invalid category: "+err.Error())
		return
	}

	if err := h.categories.Create(c.Request.Context(), &category); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "vehicle category created", category)
}

func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		utils.BadRequestResponse(c, "invalid category update: "+err.Error())
		return
	}
	delete(updates, "_id")
	delete(updates, "id")

	if err := h.categories.Update(c.Request.Context(), id, updates); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "vehicle category updated", nil)
}

func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "vehicle category deleted", nil)
}
