package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/services"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type rideRepository struct {
	live      *mongo.Collection
	completed *mongo.Collection
	cancelled *mongo.Collection
	cache     services.CacheService
}

func NewRideRepository(db *mongo.Database, cache services.CacheService) interfaces.RideRepository {
	return &rideRepository{
		live:      db.Collection("rides"),
		completed: db.Collection("completed_rides"),
		cancelled: db.Collection("cancelled_rides"),
		cache:     cache,
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	ride.Status = models.RideStatusPending
	ride.CreatedAt = time.Now()

	_, err := r.live.InsertOne(ctx, ride)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	r.cacheRide(ctx, ride)

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	if ride := r.getRideFromCache(ctx, id.Hex()); ride != nil {
		return ride, nil
	}

	var ride models.Ride
	err := r.live.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	r.cacheRide(ctx, &ride)

	return &ride, nil
}

// GetFromHistory looks a terminal ride up by id, checking the completed
// collection before the cancelled one.
func (r *rideRepository) GetFromHistory(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	for _, collection := range []*mongo.Collection{r.completed, r.cancelled} {
		var ride models.Ride
		err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
		if err == nil {
			return &ride, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, fmt.Errorf("failed to get historical ride: %w", err)
		}
	}
	return nil, models.ErrNotFound
}

// Accept claims a pending ride for a driver. The filter re-checks both the
// status and driver_id emptiness in the same write, so of any number of
// concurrent attempts exactly one can match.
func (r *rideRepository) Accept(ctx context.Context, id, driverID primitive.ObjectID, driver models.PartyInfo, vehicle models.VehicleProfile) (*models.Ride, error) {
	now := time.Now()

	filter := bson.M{
		"_id":       id,
		"status":    models.RideStatusPending,
		"driver_id": nil,
	}
	update := bson.M{"$set": bson.M{
		"driver_id":   driverID,
		"driver":      driver,
		"vehicle":     vehicle,
		"status":      models.RideStatusAccepted,
		"accepted_at": now,
	}}

	var ride models.Ride
	err := r.live.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrRideUnavailable
		}
		return nil, fmt.Errorf("failed to accept ride: %w", err)
	}

	r.invalidateRideCache(ctx, id.Hex())

	return &ride, nil
}

// MarkArrived sets the driver-arrived flag. A second call is a no-op: the
// filter only matches when the flag is still clear, so arrived_at is set
// exactly once.
func (r *rideRepository) MarkArrived(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	filter := bson.M{
		"_id":            id,
		"status":         models.RideStatusAccepted,
		"driver_arrived": false,
	}
	update := bson.M{"$set": bson.M{
		"driver_arrived": true,
		"arrived_at":     time.Now(),
	}}

	var ride models.Ride
	err := r.live.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&ride)
	if err == nil {
		r.invalidateRideCache(ctx, id.Hex())
		return &ride, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to mark arrived: %w", err)
	}

	// No match: either already arrived (idempotent success) or the ride
	// left the accepted state.
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, models.ErrRideUnavailable
	}
	if current.Status == models.RideStatusAccepted && current.DriverArrived {
		return current, nil
	}
	return nil, models.ErrRideUnavailable
}

func (r *rideRepository) Start(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	filter := bson.M{
		"_id":    id,
		"status": models.RideStatusAccepted,
	}
	update := bson.M{"$set": bson.M{
		"status":     models.RideStatusInProgress,
		"started_at": time.Now(),
	}}

	var ride models.Ride
	err := r.live.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrRideUnavailable
		}
		return nil, fmt.Errorf("failed to start ride: %w", err)
	}

	r.invalidateRideCache(ctx, id.Hex())

	return &ride, nil
}

func (r *rideRepository) Complete(ctx context.Context, id primitive.ObjectID, finalLocation models.GeoPoint, completedBy string) (*models.Ride, error) {
	filter := bson.M{
		"_id":    id,
		"status": models.RideStatusInProgress,
	}
	update := bson.M{"$set": bson.M{
		"status":         models.RideStatusCompleted,
		"completed_at":   time.Now(),
		"completed_by":   completedBy,
		"final_location": finalLocation,
	}}

	var ride models.Ride
	err := r.live.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrRideUnavailable
		}
		return nil, fmt.Errorf("failed to complete ride: %w", err)
	}

	if err := r.moveToHistory(ctx, r.completed, &ride); err != nil {
		return nil, err
	}

	return &ride, nil
}

func (r *rideRepository) Cancel(ctx context.Context, id primitive.ObjectID, reason, cancelledBy string) (*models.Ride, error) {
	filter := bson.M{
		"_id": id,
		"status": bson.M{"$in": []models.RideStatus{
			models.RideStatusPending,
			models.RideStatusAccepted,
		}},
	}
	update := bson.M{"$set": bson.M{
		"status":        models.RideStatusCancelled,
		"cancelled_at":  time.Now(),
		"cancelled_by":  cancelledBy,
		"cancel_reason": reason,
	}}

	var ride models.Ride
	err := r.live.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrRideUnavailable
		}
		return nil, fmt.Errorf("failed to cancel ride: %w", err)
	}

	if err := r.moveToHistory(ctx, r.cancelled, &ride); err != nil {
		return nil, err
	}

	return &ride, nil
}

// CancelPending cancels a ride that no driver has claimed yet. The filter
// re-checks both conditions in the write itself, so a concurrent accept
// cannot be undone by a racing decline.
func (r *rideRepository) CancelPending(ctx context.Context, id primitive.ObjectID, reason, cancelledBy string) (*models.Ride, error) {
	filter := bson.M{
		"_id":       id,
		"status":    models.RideStatusPending,
		"driver_id": nil,
	}
	update := bson.M{"$set": bson.M{
		"status":        models.RideStatusCancelled,
		"cancelled_at":  time.Now(),
		"cancelled_by":  cancelledBy,
		"cancel_reason": reason,
	}}

	var ride models.Ride
	err := r.live.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrRideUnavailable
		}
		return nil, fmt.Errorf("failed to cancel pending ride: %w", err)
	}

	if err := r.moveToHistory(ctx, r.cancelled, &ride); err != nil {
		return nil, err
	}

	return &ride, nil
}

// moveToHistory relocates a terminal ride into its historical collection
// under the same id: insert first, delete from live second, so a crash in
// between leaves a duplicate rather than a lost record.
func (r *rideRepository) moveToHistory(ctx context.Context, dest *mongo.Collection, ride *models.Ride) error {
	_, err := dest.InsertOne(ctx, ride)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to archive ride: %w", err)
	}

	if _, err := r.live.DeleteOne(ctx, bson.M{"_id": ride.ID}); err != nil {
		return fmt.Errorf("failed to remove live ride: %w", err)
	}

	r.invalidateRideCache(ctx, ride.ID.Hex())

	return nil
}

func (r *rideRepository) SetPassengerRating(ctx context.Context, id primitive.ObjectID, rating models.RideRating) error {
	return r.setRating(ctx, id, "passenger_rating", rating)
}

func (r *rideRepository) SetDriverRating(ctx context.Context, id primitive.ObjectID, rating models.RideRating) error {
	return r.setRating(ctx, id, "driver_rating", rating)
}

// setRating writes exactly one rating sub-record on a completed ride.
// The $set touches a single field, so a rating update can never reach
// price, parties or status.
func (r *rideRepository) setRating(ctx context.Context, id primitive.ObjectID, field string, rating models.RideRating) error {
	filter := bson.M{
		"_id": id,
		field: nil,
	}
	update := bson.M{"$set": bson.M{field: rating}}

	result, err := r.completed.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		exists, err := r.completed.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("failed to check rated ride: %w", err)
		}
		if exists > 0 {
			return models.ErrAlreadyRated
		}
		return models.ErrNotFound
	}

	return nil
}

func (r *rideRepository) GetPendingRides(ctx context.Context) ([]*models.Ride, error) {
	filter := bson.M{"status": models.RideStatusPending}

	cursor, err := r.live.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find pending rides: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeRides(ctx, cursor)
}

func (r *rideRepository) GetActiveByPassenger(ctx context.Context, passengerID primitive.ObjectID) (*models.Ride, error) {
	return r.findOneActive(ctx, bson.M{"passenger_id": passengerID})
}

func (r *rideRepository) GetActiveByDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error) {
	return r.findOneActive(ctx, bson.M{"driver_id": driverID})
}

func (r *rideRepository) findOneActive(ctx context.Context, filter bson.M) (*models.Ride, error) {
	filter["status"] = bson.M{"$in": []models.RideStatus{
		models.RideStatusPending,
		models.RideStatusAccepted,
		models.RideStatusInProgress,
	}}

	var ride models.Ride
	err := r.live.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active ride: %w", err)
	}

	return &ride, nil
}

func (r *rideRepository) ListHistoryByPassenger(ctx context.Context, passengerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.listHistory(ctx, bson.M{"passenger_id": passengerID}, params)
}

func (r *rideRepository) ListHistoryByDriver(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.listHistory(ctx, bson.M{"driver_id": driverID}, params)
}

func (r *rideRepository) listHistory(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	var rides []*models.Ride
	var total int64

	for _, collection := range []*mongo.Collection{r.completed, r.cancelled} {
		count, err := collection.CountDocuments(ctx, filter)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count historical rides: %w", err)
		}
		total += count

		cursor, err := collection.Find(ctx, filter, params.GetSortOptions())
		if err != nil {
			return nil, 0, fmt.Errorf("failed to find historical rides: %w", err)
		}

		batch, err := decodeRides(ctx, cursor)
		cursor.Close(ctx)
		if err != nil {
			return nil, 0, err
		}
		rides = append(rides, batch...)
	}

	return rides, total, nil
}

type changeEvent struct {
	OperationType string      `bson:"operationType"`
	FullDocument  models.Ride `bson:"fullDocument"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
}

// WatchPendingRides is the standing query dispatch exposes to drivers:
// every insert or update that leaves a ride in pending state is delivered.
func (r *rideRepository) WatchPendingRides(ctx context.Context) (<-chan models.RideEvent, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": []bson.M{
				{"operationType": "delete"},
				{"fullDocument.status": models.RideStatusPending},
			},
		}}},
	}

	return r.watch(ctx, pipeline)
}

// WatchRide observes a single ride document. A delete event means the ride
// was relocated to a historical collection; subscribers should check there.
func (r *rideRepository) WatchRide(ctx context.Context, id primitive.ObjectID) (<-chan models.RideEvent, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": id}}},
	}

	return r.watch(ctx, pipeline)
}

func (r *rideRepository) watch(ctx context.Context, pipeline mongo.Pipeline) (<-chan models.RideEvent, error) {
	stream, err := r.live.Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}

	events := make(chan models.RideEvent)

	go func() {
		defer close(events)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var change changeEvent
			if err := stream.Decode(&change); err != nil {
				continue
			}

			event := models.RideEvent{RideID: change.DocumentKey.ID}
			switch change.OperationType {
			case "insert":
				event.Type = models.RideEventCreated
				ride := change.FullDocument
				event.Ride = &ride
			case "delete":
				event.Type = models.RideEventRemoved
			default:
				event.Type = models.RideEventUpdated
				ride := change.FullDocument
				event.Ride = &ride
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func decodeRides(ctx context.Context, cursor *mongo.Cursor) ([]*models.Ride, error) {
	var rides []*models.Ride
	for cursor.Next(ctx) {
		var ride models.Ride
		if err := cursor.Decode(&ride); err != nil {
			return nil, fmt.Errorf("failed to decode ride: %w", err)
		}
		rides = append(rides, &ride)
	}
	return rides, nil
}

// Cache operations
func (r *rideRepository) cacheRide(ctx context.Context, ride *models.Ride) {
	if r.cache != nil && !ride.Status.Terminal() {
		cacheKey := fmt.Sprintf("ride:%s", ride.ID.Hex())
		r.cache.Set(ctx, cacheKey, ride, 15*time.Minute)
	}
}

func (r *rideRepository) getRideFromCache(ctx context.Context, rideID string) *models.Ride {
	if r.cache == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("ride:%s", rideID)
	var ride models.Ride
	if err := r.cache.Get(ctx, cacheKey, &ride); err != nil {
		return nil
	}

	return &ride
}

func (r *rideRepository) invalidateRideCache(ctx context.Context, rideID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("ride:%s", rideID)
		r.cache.Delete(ctx, cacheKey)
	}
}
