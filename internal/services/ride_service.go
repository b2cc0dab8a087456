package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideService drives the post-assignment lifecycle: arrival, trip start,
// completion, cancellation and mutual rating. Every transition is checked
// against the caller's role in the ride before it touches the store.
type RideService interface {
	GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error)

	MarkArrived(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error)
	StartRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error)
	CompleteRide(ctx context.Context, driverID, rideID primitive.ObjectID, finalLocation models.GeoPoint) (*models.Ride, error)

	CancelByPassenger(ctx context.Context, passengerID, rideID primitive.ObjectID, reason string) (*models.Ride, error)
	CancelByDriver(ctx context.Context, driverID, rideID primitive.ObjectID, reason string) (*models.Ride, error)

	RateByPassenger(ctx context.Context, passengerID, rideID primitive.ObjectID, stars float64, comment string) error
	RateByDriver(ctx context.Context, driverID, rideID primitive.ObjectID, stars float64, comment string) error

	ActiveRideForPassenger(ctx context.Context, passengerID primitive.ObjectID) (*models.Ride, error)
	ActiveRideForDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error)
	HistoryForPassenger(ctx context.Context, passengerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	HistoryForDriver(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
}

type rideService struct {
	rideRepo   interfaces.RideRepository
	driverRepo interfaces.DriverRepository
	notifier   NotificationService
	logger     *logger.Logger
}

func NewRideService(rideRepo interfaces.RideRepository, driverRepo interfaces.DriverRepository, notifier NotificationService, log *logger.Logger) RideService {
	return &rideService{
		rideRepo:   rideRepo,
		driverRepo: driverRepo,
		notifier:   notifier,
		logger:     log,
	}
}

// GetRide looks the ride up in the live store first, then the historical
// collections. Absence from the live store alone is not absence.
func (s *rideService) GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err == nil {
		return ride, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return s.rideRepo.GetFromHistory(ctx, rideID)
}

func (s *rideService) MarkArrived(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error) {
	if err := s.authorizeDriver(ctx, driverID, rideID); err != nil {
		return nil, err
	}

	ride, err := s.rideRepo.MarkArrived(ctx, rideID)
	if err != nil {
		return nil, err
	}

	s.logger.LogRideEvent(rideID, "driver_arrived", nil)
	s.notifier.RideArrived(ride)

	return ride, nil
}

func (s *rideService) StartRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error) {
	if err := s.authorizeDriver(ctx, driverID, rideID); err != nil {
		return nil, err
	}

	ride, err := s.rideRepo.Start(ctx, rideID)
	if err != nil {
		if errors.Is(err, models.ErrRideUnavailable) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.logger.LogRideEvent(rideID, "ride_started", nil)
	s.notifier.RideStarted(ride)

	return ride, nil
}

func (s *rideService) CompleteRide(ctx context.Context, driverID, rideID primitive.ObjectID, finalLocation models.GeoPoint) (*models.Ride, error) {
	if err := s.authorizeDriver(ctx, driverID, rideID); err != nil {
		return nil, err
	}

	ride, err := s.rideRepo.Complete(ctx, rideID, finalLocation, "driver")
	if err != nil {
		if errors.Is(err, models.ErrRideUnavailable) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if err := s.driverRepo.IncrementRides(ctx, driverID); err != nil {
		s.logger.WithError(err).WithDriverID(driverID).Warn("failed to increment ride counter")
	}

	s.logger.LogRideEvent(rideID, "ride_completed", map[string]interface{}{
		"price": ride.Price,
	})
	s.notifier.RideCompleted(ride)

	return ride, nil
}

func (s *rideService) CancelByPassenger(ctx context.Context, passengerID, rideID primitive.ObjectID, reason string) (*models.Ride, error) {
	current, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if current.PassengerID != passengerID {
		return nil, ErrNotAuthorized
	}

	return s.cancel(ctx, rideID, reason, "passenger")
}

func (s *rideService) CancelByDriver(ctx context.Context, driverID, rideID primitive.ObjectID, reason string) (*models.Ride, error) {
	if err := s.authorizeDriver(ctx, driverID, rideID); err != nil {
		return nil, err
	}

	return s.cancel(ctx, rideID, reason, "driver")
}

func (s *rideService) cancel(ctx context.Context, rideID primitive.ObjectID, reason, cancelledBy string) (*models.Ride, error) {
	ride, err := s.rideRepo.Cancel(ctx, rideID, reason, cancelledBy)
	if err != nil {
		if errors.Is(err, models.ErrRideUnavailable) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.logger.LogRideEvent(rideID, "ride_cancelled", map[string]interface{}{
		"cancelled_by": cancelledBy,
		"reason":       reason,
	})
	s.notifier.RideCancelled(ride)

	return ride, nil
}

// RateByPassenger records the passenger's rating of the driver and folds
// it into the driver's aggregate.
func (s *rideService) RateByPassenger(ctx context.Context, passengerID, rideID primitive.ObjectID, stars float64, comment string) error {
	if err := validStars(stars); err != nil {
		return err
	}

	ride, err := s.rideRepo.GetFromHistory(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.PassengerID != passengerID {
		return ErrNotAuthorized
	}
	if ride.Status != models.RideStatusCompleted {
		return ErrInvalidTransition
	}

	rating := models.RideRating{Stars: stars, Comment: comment, RatedAt: time.Now()}
	if err := s.rideRepo.SetPassengerRating(ctx, rideID, rating); err != nil {
		return err
	}

	if ride.DriverID != nil {
		if err := s.driverRepo.ApplyRating(ctx, *ride.DriverID, stars); err != nil {
			s.logger.WithError(err).WithRideID(rideID).Warn("failed to update driver rating aggregate")
		}
	}

	s.logger.LogRideEvent(rideID, "rated_by_passenger", map[string]interface{}{
		"stars": stars,
	})

	return nil
}

// RateByDriver records the driver's rating of the passenger.
func (s *rideService) RateByDriver(ctx context.Context, driverID, rideID primitive.ObjectID, stars float64, comment string) error {
	if err := validStars(stars); err != nil {
		return err
	}

	ride, err := s.rideRepo.GetFromHistory(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return ErrNotAuthorized
	}
	if ride.Status != models.RideStatusCompleted {
		return ErrInvalidTransition
	}

	rating := models.RideRating{Stars: stars, Comment: comment, RatedAt: time.Now()}
	if err := s.rideRepo.SetDriverRating(ctx, rideID, rating); err != nil {
		return err
	}

	s.logger.LogRideEvent(rideID, "rated_by_driver", map[string]interface{}{
		"stars": stars,
	})

	return nil
}

func (s *rideService) ActiveRideForPassenger(ctx context.Context, passengerID primitive.ObjectID) (*models.Ride, error) {
	return s.rideRepo.GetActiveByPassenger(ctx, passengerID)
}

func (s *rideService) ActiveRideForDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error) {
	return s.rideRepo.GetActiveByDriver(ctx, driverID)
}

func (s *rideService) HistoryForPassenger(ctx context.Context, passengerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return s.rideRepo.ListHistoryByPassenger(ctx, passengerID, params)
}

func (s *rideService) HistoryForDriver(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return s.rideRepo.ListHistoryByDriver(ctx, driverID, params)
}

func (s *rideService) authorizeDriver(ctx context.Context, driverID, rideID primitive.ObjectID) error {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return ErrNotAuthorized
	}
	return nil
}

func validStars(stars float64) error {
	if stars < utils.MinRideRating || stars > utils.MaxRideRating {
		return fmt.Errorf("rating must be between %.0f and %.0f stars", utils.MinRideRating, utils.MaxRideRating)
	}
	return nil
}
