package handlers

import (
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AdminHandler covers operations reserved for back-office staff.
type AdminHandler struct {
	drivers services.DriverService
	logger  *logger.Logger
}

func NewAdminHandler(drivers services.DriverService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		drivers: drivers,
		logger:  log,
	}
}

// SetDriverApproval approves or rejects a driver application. Only
// approved drivers are ever matching-eligible.
func (h *AdminHandler) SetDriverApproval(c *gin.Context) {
	driverID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Status models.DriverApprovalStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "approval status is required")
		return
	}

	if err := h.drivers.SetApproval(c.Request.Context(), driverID, input.Status); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "driver approval updated", nil)
}

func (h *AdminHandler) GetDriver(c *gin.Context) {
	driverID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	driver, err := h.drivers.GetByID(c.Request.Context(), driverID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "driver", driver)
}
