package interfaces

import (
	"context"

	"ridelink/internal/models"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideRepository is the store boundary for the ride lifecycle. Live rides
// and terminal (historical) rides live in separate collections; a ride
// reaches the historical collections only through Complete or Cancel,
// keeping its id.
//
// Every transition method is a single conditional write: the filter
// re-checks the expected prior state, so concurrent writers can never
// produce a lost update. A violated precondition surfaces as
// models.ErrRideUnavailable and must not be retried.
type RideRepository interface {
	// Basic operations
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	GetFromHistory(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// Conditional lifecycle transitions
	Accept(ctx context.Context, id, driverID primitive.ObjectID, driver models.PartyInfo, vehicle models.VehicleProfile) (*models.Ride, error)
	MarkArrived(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	Start(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	Complete(ctx context.Context, id primitive.ObjectID, finalLocation models.GeoPoint, completedBy string) (*models.Ride, error)
	Cancel(ctx context.Context, id primitive.ObjectID, reason, cancelledBy string) (*models.Ride, error)

	// CancelPending cancels a ride only while it is still unassigned. Once
	// any driver has claimed the ride it fails with models.ErrRideUnavailable.
	CancelPending(ctx context.Context, id primitive.ObjectID, reason, cancelledBy string) (*models.Ride, error)

	// Post-completion ratings, written to the historical collection.
	// Each touches only its own disjoint sub-record and fails with
	// models.ErrAlreadyRated when set.
	SetPassengerRating(ctx context.Context, id primitive.ObjectID, rating models.RideRating) error
	SetDriverRating(ctx context.Context, id primitive.ObjectID, rating models.RideRating) error

	// Queries
	GetPendingRides(ctx context.Context) ([]*models.Ride, error)
	GetActiveByPassenger(ctx context.Context, passengerID primitive.ObjectID) (*models.Ride, error)
	GetActiveByDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error)
	ListHistoryByPassenger(ctx context.Context, passengerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	ListHistoryByDriver(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)

	// Subscriptions. Both streams close when ctx is cancelled; cancelling
	// twice is harmless.
	WatchPendingRides(ctx context.Context) (<-chan models.RideEvent, error)
	WatchRide(ctx context.Context, id primitive.ObjectID) (<-chan models.RideEvent, error)
}
