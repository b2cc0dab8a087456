package services

import (
	"context"
	"fmt"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"
	"ridelink/pkg/push"
	"ridelink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationService delivers ride lifecycle signals to the parties over
// websocket and push. Delivery is best-effort: failures are logged and
// swallowed, never surfaced as a ride-operation failure.
type NotificationService interface {
	RideRequested(ride *models.Ride)
	RideAccepted(ride *models.Ride)
	RideArrived(ride *models.Ride)
	RideStarted(ride *models.Ride)
	RideCompleted(ride *models.Ride)
	RideCancelled(ride *models.Ride)
}

type notificationService struct {
	hub        *websocket.Hub
	push       push.PushProvider
	userRepo   interfaces.UserRepository
	driverRepo interfaces.DriverRepository
	logger     *logger.Logger
}

func NewNotificationService(hub *websocket.Hub, pushProvider push.PushProvider, userRepo interfaces.UserRepository, driverRepo interfaces.DriverRepository, log *logger.Logger) NotificationService {
	return &notificationService{
		hub:        hub,
		push:       pushProvider,
		userRepo:   userRepo,
		driverRepo: driverRepo,
		logger:     log,
	}
}

func (s *notificationService) RideRequested(ride *models.Ride) {
	if s.hub != nil {
		s.hub.BroadcastToDrivers(websocket.Message{
			Type: "ride_requested",
			Data: rideData(ride),
		})
	}
}

func (s *notificationService) RideAccepted(ride *models.Ride) {
	driverName := ""
	if ride.Driver != nil {
		driverName = ride.Driver.Name
	}
	s.notifyUser(ride.PassengerID, "ride_accepted", ride,
		"Driver on the way", fmt.Sprintf("%s accepted your ride", driverName))
}

func (s *notificationService) RideArrived(ride *models.Ride) {
	s.notifyUser(ride.PassengerID, "driver_arrived", ride,
		"Driver arrived", "Your driver is waiting at the pickup point")
}

func (s *notificationService) RideStarted(ride *models.Ride) {
	s.notifyUser(ride.PassengerID, "ride_started", ride,
		"Ride started", fmt.Sprintf("Heading to %s", ride.Destination.Place))
}

func (s *notificationService) RideCompleted(ride *models.Ride) {
	body := fmt.Sprintf("Total fare %s", utils.FormatCurrency(ride.Price, ride.Category.Currency))
	s.notifyUser(ride.PassengerID, "ride_completed", ride, "Ride completed", body)
	if ride.DriverID != nil {
		s.notifyDriverUser(ride, "ride_completed", "Ride completed", body)
	}
}

func (s *notificationService) RideCancelled(ride *models.Ride) {
	body := "Your ride was cancelled"
	if ride.CancelReason != "" {
		body = fmt.Sprintf("Ride cancelled: %s", ride.CancelReason)
	}
	s.notifyUser(ride.PassengerID, "ride_cancelled", ride, "Ride cancelled", body)
	if ride.DriverID != nil {
		s.notifyDriverUser(ride, "ride_cancelled", "Ride cancelled", body)
	}
}

// notifyDriverUser resolves the ride's driver document to its user
// identity; websocket rooms and push tokens are keyed by user id.
func (s *notificationService) notifyDriverUser(ride *models.Ride, event, title, body string) {
	if s.driverRepo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	driver, err := s.driverRepo.GetByID(ctx, *ride.DriverID)
	if err != nil {
		s.logger.WithError(err).WithRideID(ride.ID).Debug("driver notification skipped")
		return
	}

	s.notifyUser(driver.UserID, event, ride, title, body)
}

func (s *notificationService) notifyUser(userID primitive.ObjectID, event string, ride *models.Ride, title, body string) {
	if s.hub != nil {
		s.hub.SendToUser(userID, websocket.Message{
			Type:   event,
			UserID: userID,
			Data:   rideData(ride),
		})
	}

	go s.sendPush(userID, event, ride, title, body)
}

func (s *notificationService) sendPush(userID primitive.ObjectID, event string, ride *models.Ride, title, body string) {
	if s.push == nil || s.userRepo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithUserID(userID).Debug("push skipped, user not found")
		return
	}

	for _, device := range user.DeviceTokens {
		response, err := s.push.SendNotification(ctx, &push.NotificationRequest{
			Token:    device.Token,
			Platform: device.Platform,
			Title:    title,
			Body:     body,
			Data: map[string]string{
				"event":   event,
				"ride_id": ride.ID.Hex(),
				"status":  string(ride.Status),
			},
			Sound:    "default",
			Priority: "high",
		})
		if err != nil {
			s.logger.WithError(err).WithUserID(userID).Warn("push delivery failed")
			continue
		}
		if !response.Success {
			s.logger.WithFields(map[string]interface{}{
				"user_id": userID.Hex(),
				"error":   response.Error,
			}).Warn("push rejected by provider")
		}
	}
}

func rideData(ride *models.Ride) map[string]interface{} {
	return map[string]interface{}{
		"ride":    ride,
		"ride_id": ride.ID.Hex(),
		"status":  string(ride.Status),
	}
}
