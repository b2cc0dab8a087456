package interfaces

import (
	"context"
	"time"

	"ridelink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverRepository interface {
	Create(ctx context.Context, driver *models.Driver) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// Presence. The driver's own process is the only writer of these.
	SetOnline(ctx context.Context, id primitive.ObjectID, location models.GeoPoint) error
	SetOffline(ctx context.Context, id primitive.ObjectID) error
	UpdateLocation(ctx context.Context, id primitive.ObjectID, location models.GeoPoint) error

	// Matching views. freshSince bounds how old a location sample may be.
	GetAvailable(ctx context.Context, freshSince time.Time) ([]*models.Driver, error)
	GetNearby(ctx context.Context, lat, lng, radiusKM float64, freshSince time.Time) ([]*models.Driver, error)

	// ApplyRating folds one ride rating into the driver's running average
	// as a single atomic document update.
	ApplyRating(ctx context.Context, id primitive.ObjectID, stars float64) error
	IncrementRides(ctx context.Context, id primitive.ObjectID) error
}
