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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type categoryRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewCategoryRepository(db *mongo.Database, cache services.CacheService) interfaces.CategoryRepository {
	return &categoryRepository{
		collection: db.Collection("vehicle_categories"),
		cache:      cache,
	}
}

func (r *categoryRepository) Create(ctx context.Context, category *models.VehicleCategory) error {
	if err := category.Validate(); err != nil {
		return err
	}
	if category.ID.IsZero() {
		category.ID = primitive.NewObjectID()
	}
	category.CreatedAt = time.Now()
	category.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, category)
	if err != nil {
		return fmt.Errorf("failed to create vehicle category: %w", err)
	}

	r.invalidateListCache(ctx)

	return nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.VehicleCategory, error) {
	var category models.VehicleCategory
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&category)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get vehicle category: %w", err)
	}

	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context, activeOnly bool) ([]*models.VehicleCategory, error) {
	cacheKey := r.listCacheKey(activeOnly)
	if r.cache != nil {
		var cached []*models.VehicleCategory
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicle categories: %w", err)
	}
	defer cursor.Close(ctx)

	var categories []*models.VehicleCategory
	for cursor.Next(ctx) {
		var category models.VehicleCategory
		if err := cursor.Decode(&category); err != nil {
			return nil, fmt.Errorf("failed to decode vehicle category: %w", err)
		}
		categories = append(categories, &category)
	}

	if r.cache != nil {
		r.cache.Set(ctx, cacheKey, categories, 10*time.Minute)
	}

	return categories, nil
}

func (r *categoryRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	if err != nil {
		return fmt.Errorf("failed to update vehicle category: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	r.invalidateListCache(ctx)

	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete vehicle category: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}

	r.invalidateListCache(ctx)

	return nil
}

func (r *categoryRepository) listCacheKey(activeOnly bool) string {
	if activeOnly {
		return "vehicle_categories:active"
	}
	return "vehicle_categories:all"
}

func (r *categoryRepository) invalidateListCache(ctx context.Context) {
	if r.cache != nil {
		r.cache.Delete(ctx, "vehicle_categories:active", "vehicle_categories:all")
	}
}
