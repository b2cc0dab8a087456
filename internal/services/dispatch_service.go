package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridelink/internal/config"
	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reject policies. "decline" hides a ride from the declining driver only;
// "cancel" ends the ride for everyone.
const (
	RejectPolicyDecline = "decline"
	RejectPolicyCancel  = "cancel"
)

// RequestRideInput is the passenger's ride request.
type RequestRideInput struct {
	Origin        models.TripPoint   `json:"origin" binding:"required"`
	Destination   models.TripPoint   `json:"destination" binding:"required"`
	CategoryID    primitive.ObjectID `json:"category_id" binding:"required"`
	PaymentMethod string             `json:"payment_method"`
}

// QuoteInput is a fare preview request. No ride is created.
type QuoteInput struct {
	Origin      models.TripPoint   `json:"origin" binding:"required"`
	Destination models.TripPoint   `json:"destination" binding:"required"`
	CategoryID  primitive.ObjectID `json:"category_id" binding:"required"`
}

// DispatchService owns ride creation and the driver-assignment race.
type DispatchService interface {
	// PreviewQuote prices a trip without creating a ride.
	PreviewQuote(ctx context.Context, input *QuoteInput) (*TripQuote, error)

	RequestRide(ctx context.Context, passengerID primitive.ObjectID, input *RequestRideInput) (*models.Ride, error)

	// AcceptRide claims a pending ride for a driver. Of any number of
	// concurrent attempts exactly one succeeds; the rest get
	// models.ErrRideUnavailable.
	AcceptRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error)

	// DeclineRide applies the configured reject policy.
	DeclineRide(ctx context.Context, driverID, rideID primitive.ObjectID) error

	// PendingRidesFor lists open rides the driver may accept, excluding
	// ones the driver has declined.
	PendingRidesFor(ctx context.Context, driverID primitive.ObjectID) ([]*models.Ride, error)

	// AwaitAssignment blocks until a driver accepts the ride, the ride is
	// cancelled, or the wait cap elapses.
	AwaitAssignment(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error)

	// WatchRide streams state changes of one ride until ctx is cancelled.
	WatchRide(ctx context.Context, rideID primitive.ObjectID) (<-chan models.RideEvent, error)

	// WatchPendingRides streams the open-rides feed shown to drivers.
	WatchPendingRides(ctx context.Context) (<-chan models.RideEvent, error)
}

type dispatchService struct {
	rideRepo     interfaces.RideRepository
	driverRepo   interfaces.DriverRepository
	categoryRepo interfaces.CategoryRepository
	userRepo     interfaces.UserRepository
	pricing      PricingService
	notifier     NotificationService
	cache        CacheService
	config       *config.DispatchConfig
	logger       *logger.Logger
}

func NewDispatchService(
	rideRepo interfaces.RideRepository,
	driverRepo interfaces.DriverRepository,
	categoryRepo interfaces.CategoryRepository,
	userRepo interfaces.UserRepository,
	pricing PricingService,
	notifier NotificationService,
	cache CacheService,
	cfg *config.DispatchConfig,
	log *logger.Logger,
) DispatchService {
	return &dispatchService{
		rideRepo:     rideRepo,
		driverRepo:   driverRepo,
		categoryRepo: categoryRepo,
		userRepo:     userRepo,
		pricing:      pricing,
		notifier:     notifier,
		cache:        cache,
		config:       cfg,
		logger:       log,
	}
}

func (s *dispatchService) PreviewQuote(ctx context.Context, input *QuoteInput) (*TripQuote, error) {
	if input.Origin.Location.IsZero() || input.Destination.Location.IsZero() {
		return nil, fmt.Errorf("origin and destination coordinates are required")
	}

	category, err := s.categoryRepo.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle category: %w", err)
	}
	if !category.IsActive {
		return nil, fmt.Errorf("vehicle category %s is not active", category.Name)
	}

	quote, err := s.pricing.QuoteTrip(ctx, input.Origin.Location, input.Destination.Location, category.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to quote trip: %w", err)
	}

	return quote, nil
}

func (s *dispatchService) RequestRide(ctx context.Context, passengerID primitive.ObjectID, input *RequestRideInput) (*models.Ride, error) {
	if input.Origin.Location.IsZero() || input.Destination.Location.IsZero() {
		return nil, fmt.Errorf("origin and destination coordinates are required")
	}

	if _, err := s.rideRepo.GetActiveByPassenger(ctx, passengerID); err == nil {
		return nil, ErrActiveRideExists
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check active rides: %w", err)
	}

	passenger, err := s.userRepo.GetByID(ctx, passengerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load passenger: %w", err)
	}

	category, err := s.categoryRepo.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle category: %w", err)
	}
	if !category.IsActive {
		return nil, fmt.Errorf("vehicle category %s is not active", category.Name)
	}

	// The ride carries a value copy of the category terms. Category edits
	// after this point never change this ride's price.
	snapshot := category.Snapshot()

	quote, err := s.pricing.QuoteTrip(ctx, input.Origin.Location, input.Destination.Location, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to quote trip: %w", err)
	}

	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = "cash"
	}

	ride := &models.Ride{
		PassengerID:     passengerID,
		Passenger:       passenger.Party(),
		Origin:          input.Origin,
		Destination:     input.Destination,
		Category:        snapshot,
		Price:           quote.Price,
		DistanceMeters:  quote.DistanceMeters,
		DurationSeconds: quote.DurationSeconds,
		PaymentMethod:   paymentMethod,
	}

	err = withRetry(ctx, func() error {
		return s.rideRepo.Create(ctx, ride)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ride: %w", err)
	}

	// The request stands even with nobody to serve it; the passenger's wait
	// is bounded by AwaitAssignment. An empty pool is still worth flagging.
	available, availErr := s.driverRepo.GetAvailable(ctx, time.Now().Add(-s.config.PresenceFreshness))
	if availErr != nil {
		s.logger.WithError(availErr).WithRideID(ride.ID).Warn("failed to check driver availability")
	} else if len(available) == 0 {
		s.logger.WithRideID(ride.ID).Warn("no eligible drivers online for new ride")
	}

	s.logger.LogRideEvent(ride.ID, "ride_requested", map[string]interface{}{
		"passenger_id":   passengerID.Hex(),
		"category":       snapshot.Name,
		"price":          ride.Price,
		"drivers_online": len(available),
	})

	s.notifier.RideRequested(ride)

	return ride, nil
}

func (s *dispatchService) AcceptRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load driver: %w", err)
	}

	if !driver.Vehicle.Complete() {
		return nil, ErrIncompleteProfile
	}
	if !driver.MatchingEligible(time.Now(), s.config.PresenceFreshness) {
		return nil, ErrDriverNotEligible
	}

	if _, err := s.rideRepo.GetActiveByDriver(ctx, driverID); err == nil {
		return nil, ErrActiveRideExists
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check driver's active rides: %w", err)
	}

	// Single conditional write; no read-then-write window for a second
	// driver to slip through.
	ride, err := s.rideRepo.Accept(ctx, rideID, driverID,
		models.PartyInfo{Name: driver.Name, Phone: driver.Phone}, driver.Vehicle)
	if err != nil {
		return nil, err
	}

	s.logger.LogRideEvent(ride.ID, "ride_accepted", map[string]interface{}{
		"driver_id": driverID.Hex(),
	})

	s.notifier.RideAccepted(ride)

	return ride, nil
}

func (s *dispatchService) DeclineRide(ctx context.Context, driverID, rideID primitive.ObjectID) error {
	switch s.config.RejectPolicy {
	case RejectPolicyCancel:
		// A decline only ever refuses an open offer. Once a ride is
		// assigned, only its own parties may cancel it.
		ride, err := s.rideRepo.CancelPending(ctx, rideID, "declined by driver", "driver")
		if err != nil {
			return err
		}
		s.logger.LogRideEvent(rideID, "ride_declined_cancelled", map[string]interface{}{
			"driver_id": driverID.Hex(),
		})
		s.notifier.RideCancelled(ride)
		return nil

	default:
		// Per-driver decline: the ride stays pending for everyone else.
		key := s.declineSetKey(driverID)
		if err := s.cache.SAdd(ctx, key, rideID.Hex()); err != nil {
			return fmt.Errorf("failed to record decline: %w", err)
		}
		s.cache.Expire(ctx, key, s.config.AssignmentWaitCap)

		s.logger.LogRideEvent(rideID, "ride_declined", map[string]interface{}{
			"driver_id": driverID.Hex(),
		})
		return nil
	}
}

func (s *dispatchService) PendingRidesFor(ctx context.Context, driverID primitive.ObjectID) ([]*models.Ride, error) {
	rides, err := s.rideRepo.GetPendingRides(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending rides: %w", err)
	}

	declined, err := s.cache.SMembers(ctx, s.declineSetKey(driverID))
	if err != nil {
		s.logger.WithError(err).WithDriverID(driverID).Warn("failed to load decline set")
		return rides, nil
	}
	if len(declined) == 0 {
		return rides, nil
	}

	declinedSet := make(map[string]struct{}, len(declined))
	for _, id := range declined {
		declinedSet[id] = struct{}{}
	}

	visible := rides[:0]
	for _, ride := range rides {
		if _, skip := declinedSet[ride.ID.Hex()]; !skip {
			visible = append(visible, ride)
		}
	}

	return visible, nil
}

// AwaitAssignment blocks until a driver is attached to the ride. The ride
// subscription carries most updates; a poll ticker backstops missed or
// dropped events. Cancellation of the ride or of ctx ends the wait; so
// does the configured cap, to keep abandoned requests from holding a
// waiter forever.
func (s *dispatchService) AwaitAssignment(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	events, err := s.rideRepo.WatchRide(watchCtx, rideID)
	if err != nil {
		s.logger.WithError(err).WithRideID(rideID).Warn("ride subscription unavailable, falling back to polling")
		events = nil
	}

	deadline := time.NewTimer(s.config.AssignmentWaitCap)
	defer deadline.Stop()
	ticker := time.NewTicker(s.config.AssignmentPoll)
	defer ticker.Stop()

	for {
		ride, done, err := s.checkAssignment(ctx, rideID)
		if done {
			return ride, err
		}

		select {
		case <-ticker.C:
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case <-deadline.C:
			return ride, ErrAwaitTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// checkAssignment reads the ride's current state and decides whether the
// wait is over.
func (s *dispatchService) checkAssignment(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, bool, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Relocated: the ride reached a terminal state.
			if historical, histErr := s.rideRepo.GetFromHistory(ctx, rideID); histErr == nil {
				return historical, true, models.ErrRideUnavailable
			}
			return nil, true, models.ErrNotFound
		}
		return nil, true, err
	}

	switch {
	case ride.Status == models.RideStatusCancelled:
		return ride, true, models.ErrRideUnavailable
	case ride.HasDriver():
		return ride, true, nil
	}

	return ride, false, nil
}

func (s *dispatchService) WatchRide(ctx context.Context, rideID primitive.ObjectID) (<-chan models.RideEvent, error) {
	return s.rideRepo.WatchRide(ctx, rideID)
}

func (s *dispatchService) WatchPendingRides(ctx context.Context) (<-chan models.RideEvent, error) {
	return s.rideRepo.WatchPendingRides(ctx)
}

func (s *dispatchService) declineSetKey(driverID primitive.ObjectID) string {
	return fmt.Sprintf("rides:declined:%s", driverID.Hex())
}
