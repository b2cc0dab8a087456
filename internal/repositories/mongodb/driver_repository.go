package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type driverRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewDriverRepository(db *mongo.Database, cache services.CacheService) interfaces.DriverRepository {
	return &driverRepository{
		collection: db.Collection("drivers"),
		cache:      cache,
	}
}

func (r *driverRepository) Create(ctx context.Context, driver *models.Driver) error {
	if driver.ID.IsZero() {
		driver.ID = primitive.NewObjectID()
	}
	if driver.Status == "" {
		driver.Status = models.DriverApprovalPending
	}
	driver.CreatedAt = time.Now()
	driver.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, driver)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}

	return nil
}

func (r *driverRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error) {
	if driver := r.getDriverFromCache(ctx, id.Hex()); driver != nil {
		return driver, nil
	}

	var driver models.Driver
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&driver)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}

	r.cacheDriver(ctx, &driver)

	return &driver, nil
}

func (r *driverRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error) {
	var driver models.Driver
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&driver)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get driver by user: %w", err)
	}

	return &driver, nil
}

func (r *driverRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	if err != nil {
		return fmt.Errorf("failed to update driver: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	r.invalidateDriverCache(ctx, id.Hex())

	return nil
}

func (r *driverRepository) SetOnline(ctx context.Context, id primitive.ObjectID, location models.GeoPoint) error {
	now := time.Now()
	return r.Update(ctx, id, map[string]interface{}{
		"is_online":            true,
		"current_location":     location,
		"last_location_update": now,
	})
}

func (r *driverRepository) SetOffline(ctx context.Context, id primitive.ObjectID) error {
	return r.Update(ctx, id, map[string]interface{}{
		"is_online": false,
	})
}

func (r *driverRepository) UpdateLocation(ctx context.Context, id primitive.ObjectID, location models.GeoPoint) error {
	now := time.Now()

	// Location samples only count while the driver is online; a sample
	// arriving after go-offline must not resurrect presence.
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "is_online": true},
		bson.M{"$set": bson.M{
			"current_location":     location,
			"last_location_update": now,
			"updated_at":           now,
		}})
	if err != nil {
		return fmt.Errorf("failed to update driver location: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	r.invalidateDriverCache(ctx, id.Hex())

	return nil
}

func (r *driverRepository) GetAvailable(ctx context.Context, freshSince time.Time) ([]*models.Driver, error) {
	filter := bson.M{
		"status":               models.DriverApprovalApproved,
		"is_online":            true,
		"last_location_update": bson.M{"$gte": freshSince},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find available drivers: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeDrivers(ctx, cursor)
}

func (r *driverRepository) GetNearby(ctx context.Context, lat, lng, radiusKM float64, freshSince time.Time) ([]*models.Driver, error) {
	filter := bson.M{
		"status":               models.DriverApprovalApproved,
		"is_online":            true,
		"last_location_update": bson.M{"$gte": freshSince},
		"current_location": bson.M{
			"$nearSphere": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": radiusKM * 1000,
			},
		},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby drivers: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeDrivers(ctx, cursor)
}

// ApplyRating folds one star value into the running average in a single
// update pipeline, so two rides rated concurrently both land in the
// aggregate.
func (r *driverRepository) ApplyRating(ctx context.Context, id primitive.ObjectID, stars float64) error {
	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"rating": bson.M{"$divide": bson.A{
				bson.M{"$add": bson.A{
					bson.M{"$multiply": bson.A{"$rating", "$total_ratings"}},
					stars,
				}},
				bson.M{"$add": bson.A{"$total_ratings", 1}},
			}},
			"total_ratings": bson.M{"$add": bson.A{"$total_ratings", 1}},
			"updated_at":    time.Now(),
		}},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return fmt.Errorf("failed to apply driver rating: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	r.invalidateDriverCache(ctx, id.Hex())

	return nil
}

func (r *driverRepository) IncrementRides(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"total_rides": 1},
		"$set": bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to increment driver rides: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	r.invalidateDriverCache(ctx, id.Hex())

	return nil
}

func decodeDrivers(ctx context.Context, cursor *mongo.Cursor) ([]*models.Driver, error) {
	var drivers []*models.Driver
	for cursor.Next(ctx) {
		var driver models.Driver
		if err := cursor.Decode(&driver); err != nil {
			return nil, fmt.Errorf("failed to decode driver: %w", err)
		}
		drivers = append(drivers, &driver)
	}
	return drivers, nil
}

// Cache operations
func (r *driverRepository) cacheDriver(ctx context.Context, driver *models.Driver) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("driver:%s", driver.ID.Hex())
		r.cache.Set(ctx, cacheKey, driver, 5*time.Minute)
	}
}

func (r *driverRepository) getDriverFromCache(ctx context.Context, driverID string) *models.Driver {
	if r.cache == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("driver:%s", driverID)
	var driver models.Driver
	if err := r.cache.Get(ctx, cacheKey, &driver); err != nil {
		return nil
	}

	return &driver
}

func (r *driverRepository) invalidateDriverCache(ctx context.Context, driverID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("driver:%s", driverID)
		r.cache.Delete(ctx, cacheKey)
	}
}
