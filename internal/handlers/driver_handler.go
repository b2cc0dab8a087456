package handlers

import (
	"context"

	"ridelink/internal/middleware"
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DriverHandler is the driver-facing surface: profile, presence and the
// ride lifecycle from the driver's seat.
type DriverHandler struct {
	drivers  services.DriverService
	dispatch services.DispatchService
	rides    services.RideService
	presence services.PresenceService
	logger   *logger.Logger
}

func NewDriverHandler(drivers services.DriverService, dispatch services.DispatchService, rides services.RideService, presence services.PresenceService, log *logger.Logger) *DriverHandler {
	return &DriverHandler{
		drivers:  drivers,
		dispatch: dispatch,
		rides:    rides,
		presence: presence,
		logger:   log,
	}
}

// driverForUser resolves the authenticated user to their driver document.
func (h *DriverHandler) driverForUser(c *gin.Context) (*models.Driver, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "authentication required")
		return nil, false
	}

	driver, err := h.drivers.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}

	return driver, true
}

func (h *DriverHandler) Register(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "authentication required")
		return
	}

	var input struct {
		Name    string                `json:"name" binding:"required"`
		Phone   string                `json:"phone" binding:"required"`
		Vehicle models.VehicleProfile `json:"vehicle"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "invalid driver registration: "+err.Error())
		return
	}

	driver, err := h.drivers.Register(c.Request.Context(), userID, input.Name, input.Phone, input.Vehicle)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "driver registered", driver)
}

func (h *DriverHandler) Me(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, "driver profile", driver)
}

func (h *DriverHandler) UpdateVehicle(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}

	var vehicle models.VehicleProfile
	if err := c.ShouldBindJSON(&vehicle); err != nil {
		utils.BadRequestResponse(c, "invalid vehicle profile: "+err.Error())
		return
	}

	if err := h.drivers.UpdateVehicle(c.Request.Context(), driver.ID, vehicle); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "vehicle updated", vehicle)
}

type locationInput struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

func (in locationInput) geoPoint() models.GeoPoint {
	return models.NewGeoPoint(in.Lat, in.Lng)
}

func (h *DriverHandler) GoOnline(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}

	var input locationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "current location is required to go online")
		return
	}

	if err := h.presence.GoOnline(c.Request.Context(), driver.ID, input.geoPoint()); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "driver online", nil)
}

func (h *DriverHandler) GoOffline(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}

	if err := h.presence.GoOffline(c.Request.Context(), driver.ID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "driver offline", nil)
}

func (h *DriverHandler) ReportLocation(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}

	var input locationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "lat and lng are required")
		return
	}

	if err := h.presence.ReportLocation(c.Request.Context(), driver.ID, input.geoPoint()); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "location recorded", nil)
}

func (h *DriverHandler) PendingRides(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}

	rides, err := h.dispatch.PendingRidesFor(c.Request.Context(), driver.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "pending rides", rides)
}

func (h *DriverHandler) AcceptRide(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}
	rideID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ride, err := h.dispatch.AcceptRide(c.Request.Context(), driver.ID, rideID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "ride accepted", ride)
}

func (h *DriverHandler) DeclineRide(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}
	rideID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.dispatch.DeclineRide(c.Request.Context(), driver.ID, rideID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "ride declined", nil)
}

func (h *DriverHandler) MarkArrived(c *gin.Context) {
	h.transition(c, h.rides.MarkArrived, "arrival recorded")
}

func (h *DriverHandler) StartRide(c *gin.Context) {
	h.transition(c, h.rides.StartRide, "ride started")
}

func (h *DriverHandler) transition(c *gin.Context, op func(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error), message string) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}
	rideID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ride, err := op(c.Request.Context(), driver.ID, rideID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, message, ride)
}

func (h *DriverHandler) CompleteRide(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}
	rideID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var input locationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "final location is required to complete the ride")
		return
	}

	ride, err := h.rides.CompleteRide(c.Request.Context(), driver.ID, rideID, input.geoPoint())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "ride completed", ride)
}

func (h *DriverHandler) CancelRide(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
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

	ride, err := h.rides.CancelByDriver(c.Request.Context(), driver.ID, rideID, input.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "ride cancelled", ride)
}

// RateRide records the driver's rating of the passenger.
func (h *DriverHandler) RateRide(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
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

	if err := h.rides.RateByDriver(c.Request.Context(), driver.ID, rideID, input.Stars, input.Comment); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "rating recorded", nil)
}

func (h *DriverHandler) ActiveRide(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}

	ride, err := h.rides.ActiveRideForDriver(c.Request.Context(), driver.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "active ride", ride)
}

func (h *DriverHandler) History(c *gin.Context) {
	driver, ok := h.driverForUser(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	rides, total, err := h.rides.HistoryForDriver(c.Request.Context(), driver.ID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "ride history", rides, &utils.Meta{
		Pagination: params.BuildMeta(total),
		Count:      len(rides),
	})
}
