package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the dispatch queries depend on. Safe to
// run at every startup; mongo treats existing identical indexes as no-ops.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"rides": {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "passenger_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "origin.location", Value: "2dsphere"}}},
		},
		"completed_rides": {
			{Keys: bson.D{{Key: "passenger_id", Value: 1}, {Key: "completed_at", Value: -1}}},
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "completed_at", Value: -1}}},
		},
		"cancelled_rides": {
			{Keys: bson.D{{Key: "passenger_id", Value: 1}, {Key: "cancelled_at", Value: -1}}},
		},
		"drivers": {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "is_online", Value: 1}, {Key: "last_location_update", Value: -1}}},
			{Keys: bson.D{{Key: "current_location", Value: "2dsphere"}}},
		},
		"vehicle_categories": {
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "name", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}

	return nil
}
