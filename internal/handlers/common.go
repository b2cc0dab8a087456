package handlers

import (
	"errors"

	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// respondServiceError maps service and storage sentinels to HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		utils.NotFoundResponse(c, "resource not found")
	case errors.Is(err, models.ErrRideUnavailable):
		utils.ConflictResponse(c, "ride is no longer available")
	case errors.Is(err, models.ErrAlreadyRated):
		utils.ConflictResponse(c, "ride already rated")
	case errors.Is(err, services.ErrInvalidTransition):
		utils.ConflictResponse(c, "ride is not in a state that allows this operation")
	case errors.Is(err, services.ErrActiveRideExists):
		utils.ConflictResponse(c, "an active ride already exists")
	case errors.Is(err, services.ErrIncompleteProfile):
		utils.BadRequestResponse(c, "complete your vehicle profile before accepting rides")
	case errors.Is(err, services.ErrDriverNotEligible):
		utils.ForbiddenResponse(c, "driver is not eligible for dispatch")
	case errors.Is(err, services.ErrNotAuthorized):
		utils.ForbiddenResponse(c, "you are not a party to this ride")
	case errors.Is(err, services.ErrAwaitTimeout):
		utils.ErrorResponse(c, 408, "ASSIGNMENT_TIMEOUT", "no driver accepted within the wait window")
	default:
		utils.InternalErrorResponse(c, "internal error")
	}
}

func parseObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		utils.BadRequestResponse(c, "invalid id")
		return primitive.NilObjectID, false
	}
	return id, true
}
