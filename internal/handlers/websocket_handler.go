package handlers

import (
	"context"
	"time"

	"ridelink/internal/middleware"
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"
	"ridelink/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebSocketHandler upgrades client connections into the hub. Driver
// connections double as a location feed.
type WebSocketHandler struct {
	hub      *websocket.Hub
	drivers  services.DriverService
	presence services.PresenceService
	logger   *logger.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, drivers services.DriverService, presence services.PresenceService, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		drivers:  drivers,
		presence: presence,
		logger:   log,
	}
}

func (h *WebSocketHandler) Connect(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "authentication required")
		return
	}
	role := c.GetString(middleware.ContextRole)

	var onLocation func(primitive.ObjectID, float64, float64)
	if role == string(models.RoleDriver) {
		onLocation = h.locationSink()
	}

	if err := websocket.ServeClient(h.hub, c.Writer, c.Request, userID, role, onLocation); err != nil {
		h.logger.WithError(err).WithUserID(userID).Warn("websocket upgrade failed")
	}
}

// locationSink routes socket location frames into the presence tracker,
// resolving the connection's user id to the driver document once per frame.
// Throttling happens inside the presence service.
func (h *WebSocketHandler) locationSink() func(primitive.ObjectID, float64, float64) {
	return func(driverUserID primitive.ObjectID, lat, lng float64) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		driver, err := h.drivers.GetByUserID(ctx, driverUserID)
		if err != nil {
			h.logger.WithError(err).WithUserID(driverUserID).Debug("location frame from unknown driver")
			return
		}

		if err := h.presence.ReportLocation(ctx, driver.ID, models.NewGeoPoint(lat, lng)); err != nil {
			h.logger.WithError(err).WithDriverID(driver.ID).Debug("location frame dropped")
		}
	}
}
