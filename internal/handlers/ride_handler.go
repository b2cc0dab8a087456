package handlers

import (
	"errors"
	"strconv"

	"ridelink/internal/middleware"
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RideHandler is the passenger-facing ride surface.
type RideHandler struct {
	dispatch services.DispatchService
	rides    services.RideService
	presence services.PresenceService
	logger   *logger.Logger
}

func NewRideHandler(dispatch services.DispatchService, rides services.RideService, presence services.PresenceService, log *logger.Logger) *RideHandler {
	return &RideHandler{
		dispatch: dispatch,
		rides:    rides,
		presence: presence,
		logger:   log,
	}
}

// QuotePreview prices a trip without creating a ride.
func (h *RideHandler) QuotePreview(c *gin.Context) {
	var input services.QuoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "invalid quote request: "+err.Error())
		return
	}

	quote, err := h.dispatch.PreviewQuote(c.Request.Context(), &input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "quote", quote)
}

// RequestRide creates a pending ride and offers it to drivers.
func (h *RideHandler) RequestRide(c *gin.Context) {
	passengerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "authentication required")
		return
	}

	var input services.RequestRideInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "invalid ride request: "+err.Error())
		return
	}

	ride, err := h.dispatch.RequestRide(c.Request.Context(), passengerID, &input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "ride requested", ride)
}

// AwaitAssignment blocks until a driver accepts or the wait cap elapses.
func (h *RideHandler) AwaitAssignment(c *gin.Context) {
	rideID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ride, err := h.dispatch.AwaitAssignment(c.Request.Context(), rideID)
	if err != nil {
		if errors.Is(err, models.ErrRideUnavailable) && ride != nil {
			utils.SuccessResponse(c, "ride ended before assignment", ride)
			return
		}
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "driver assigned", ride)
}

func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ride, err := h.rides.GetRide(c.Request.Context(), rideID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "ride", ride)
}

func (h *RideHandler) ActiveRide(c *gin.Context) {
	passengerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "authentication required")
		return
	}

	ride, err := h.rides.ActiveRideForPassenger(c.Request.Context(), passengerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "active ride", ride)
}

func (h *RideHandler) History(c *gin.Context) {
	passengerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "authentication required")
		return
	}

	params := utils.GetPaginationParams(c)
	rides, total, err := h.rides.HistoryForPassenger(c.Request.Context(), passengerID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "ride history", rides, &utils.Meta{
		Pagination: params.BuildMeta(total),
		Count:      len(rides),
	})
}

func (h *RideHandler) CancelRide(c *gin.Context) {
	passengerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "authentication required")
		return
	}
	rideID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	c.ShouldBindJSON(&input)

	ride, err := h.rides.CancelByPassenger(c.Request.Context(), passengerID, rideID, input.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "ride cancelled", ride)
}

// RateRide records the passenger's rating of the driver.
func (h *RideHandler) RateRide(c *gin.Context) {
	passengerID, ok := middleware.GetUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "authentication required")
		return
	}
	rideID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Stars   float64 `json:"stars" binding:"required"`
		Comment string  `json:"comment"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "invalid rating: "+err.Error())
		return
	}

	if err := h.rides.RateByPassenger(c.Request.Context(), passengerID, rideID, input.Stars, input.Comment); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "rating recorded", nil)
}

// NearbyDrivers is the passenger's pre-request map view.
func (h *RideHandler) NearbyDrivers(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil || !utils.IsValidCoordinates(lat, lng) {
		utils.BadRequestResponse(c, "valid lat and lng query parameters are required")
		return
	}
	radiusKM, _ := strconv.ParseFloat(c.DefaultQuery("radius_km", "0"), 64)

	drivers, err := h.presence.NearbyDrivers(c.Request.Context(), lat, lng, radiusKM)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "nearby drivers", drivers)
}
