package interfaces

import (
	"context"

	"ridelink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.VehicleCategory) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.VehicleCategory, error)
	List(ctx context.Context, activeOnly bool) ([]*models.VehicleCategory, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}
