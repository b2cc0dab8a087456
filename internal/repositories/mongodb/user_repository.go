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

type userRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewUserRepository(db *mongo.Database, cache services.CacheService) interfaces.UserRepository {
	return &userRepository{
		collection: db.Collection("users"),
		cache:      cache,
	}
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("user:%s", id.Hex())
		var user models.User
		if err := r.cache.Get(ctx, cacheKey, &user); err == nil {
			return &user, nil
		}
	}

	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if r.cache != nil {
		cacheKey := fmt.Sprintf("user:%s", id.Hex())
		r.cache.Set(ctx, cacheKey, &user, 10*time.Minute)
	}

	return &user, nil
}

func (r *userRepository) AddDeviceToken(ctx context.Context, id primitive.ObjectID, token models.DeviceToken) error {
	// $addToSet keeps re-registration of the same token idempotent.
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$addToSet": bson.M{"device_tokens": token},
		"$set":      bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to add device token: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	r.invalidateUserCache(ctx, id.Hex())

	return nil
}

func (r *userRepository) RemoveDeviceToken(ctx context.Context, id primitive.ObjectID, token string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{"device_tokens": bson.M{"token": token}},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to remove device token: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	r.invalidateUserCache(ctx, id.Hex())

	return nil
}

func (r *userRepository) invalidateUserCache(ctx context.Context, userID string) {
	if r.cache != nil {
		r.cache.Delete(ctx, fmt.Sprintf("user:%s", userID))
	}
}
