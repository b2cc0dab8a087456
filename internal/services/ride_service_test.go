package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"ridelink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// checkDriverInvariant verifies driver_id is attached iff the status says
// a driver is involved.
func checkDriverInvariant(t *testing.T, ride *models.Ride) {
	t.Helper()
	withDriver := ride.Status == models.RideStatusAccepted ||
		ride.Status == models.RideStatusInProgress ||
		ride.Status == models.RideStatusCompleted
	if withDriver && !ride.HasDriver() {
		t.Errorf("status %s but no driver attached", ride.Status)
	}
	if ride.Status == models.RideStatusPending && ride.HasDriver() {
		t.Errorf("pending ride has a driver attached")
	}
}

func TestFullRideLifecycle(t *testing.T) {
	env := newDispatchEnv(t)
	ride := env.requestRide(t)
	driver := env.seedDriver(t)
	ctx := context.Background()

	checkDriverInvariant(t, ride)

	accepted, err := env.dispatch.AcceptRide(ctx, driver.ID, ride.ID)
	if err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}
	checkDriverInvariant(t, accepted)

	arrived, err := env.rides.MarkArrived(ctx, driver.ID, ride.ID)
	if err != nil {
		t.Fatalf("MarkArrived: %v", err)
	}
	if !arrived.DriverArrived || arrived.ArrivedAt == nil {
		t.Error("arrival not recorded")
	}
	checkDriverInvariant(t, arrived)

	started, err := env.rides.StartRide(ctx, driver.ID, ride.ID)
	if err != nil {
		t.Fatalf("StartRide: %v", err)
	}
	if started.Status != models.RideStatusInProgress {
		t.Errorf("status = %s, want in_progress", started.Status)
	}
	checkDriverInvariant(t, started)

	completed, err := env.rides.CompleteRide(ctx, driver.ID, ride.ID, models.NewGeoPoint(52.53, 13.41))
	if err != nil {
		t.Fatalf("CompleteRide: %v", err)
	}
	if completed.Status != models.RideStatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}
	if completed.CompletedBy != "driver" {
		t.Errorf("completed_by = %q", completed.CompletedBy)
	}
	checkDriverInvariant(t, completed)

	// Driver's ride counter advanced.
	updated, _ := env.driverRepo.GetByID(ctx, driver.ID)
	if updated.TotalRides != 1 {
		t.Errorf("driver total_rides = %d, want 1", updated.TotalRides)
	}
}

func TestMarkArrivedIdempotent(t *testing.T) {
	env := newDispatchEnv(t)
	ride := env.requestRide(t)
	driver := env.seedDriver(t)
	ctx := context.Background()

	if _, err := env.dispatch.AcceptRide(ctx, driver.ID, ride.ID); err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}

	first, err := env.rides.MarkArrived(ctx, driver.ID, ride.ID)
	if err != nil {
		t.Fatalf("first MarkArrived: %v", err)
	}

	second, err := env.rides.MarkArrived(ctx, driver.ID, ride.ID)
	if err != nil {
		t.Fatalf("second MarkArrived should be a no-op, got: %v", err)
	}

	if !second.ArrivedAt.Equal(*first.ArrivedAt) {
		t.Errorf("arrived_at changed on repeat call: %v then %v", first.ArrivedAt, second.ArrivedAt)
	}
}

// A ride relocated to history keeps every field under the same id.
func TestCompletedRideRoundTrip(t *testing.T) {
	env := newDispatchEnv(t)
	ride := env.requestRide(t)
	driver := env.seedDriver(t)
	ctx := context.Background()

	env.dispatch.AcceptRide(ctx, driver.ID, ride.ID)
	env.rides.MarkArrived(ctx, driver.ID, ride.ID)
	env.rides.StartRide(ctx, driver.ID, ride.ID)

	before, err := env.rideRepo.GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("GetByID before completion: %v", err)
	}

	if _, err := env.rides.CompleteRide(ctx, driver.ID, ride.ID, models.NewGeoPoint(52.53, 13.41)); err != nil {
		t.Fatalf("CompleteRide: %v", err)
	}

	if _, err := env.rideRepo.GetByID(ctx, ride.ID); !errors.Is(err, models.ErrNotFound) {
		t.Error("completed ride still present in the live store")
	}

	after, err := env.rides.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("GetRide from history: %v", err)
	}

	if after.ID != before.ID {
		t.Error("historical ride has a different id")
	}
	if after.PassengerID != before.PassengerID ||
		after.Price != before.Price ||
		*after.DriverID != *before.DriverID ||
		after.Origin.Place != before.Origin.Place ||
		!after.CreatedAt.Equal(before.CreatedAt) ||
		!after.AcceptedAt.Equal(*before.AcceptedAt) ||
		!after.ArrivedAt.Equal(*before.ArrivedAt) ||
		!after.StartedAt.Equal(*before.StartedAt) {
		t.Error("historical ride lost fields it had before relocation")
	}
}

func TestCancelInProgressBlocked(t *testing.T) {
	env := newDispatchEnv(t)
	ride := env.requestRide(t)
	driver := env.seedDriver(t)
	ctx := context.Background()

	env.dispatch.AcceptRide(ctx, driver.ID, ride.ID)
	env.rides.StartRide(ctx, driver.ID, ride.ID)

	if _, err := env.rides.CancelByPassenger(ctx, ride.PassengerID, ride.ID, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel of in-progress ride: err = %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionsRejectOutsiders(t *testing.T) {
	env := newDispatchEnv(t)
	ride := env.requestRide(t)
	driver := env.seedDriver(t)
	stranger := env.seedDriver(t)
	ctx := context.Background()

	env.dispatch.AcceptRide(ctx, driver.ID, ride.ID)

	if _, err := env.rides.StartRide(ctx, stranger.ID, ride.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("stranger StartRide err = %v, want ErrNotAuthorized", err)
	}
	if _, err := env.rides.CancelByPassenger(ctx, primitive.NewObjectID(), ride.ID, "nope"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("stranger cancel err = %v, want ErrNotAuthorized", err)
	}
}

func completeRide(t *testing.T, env *dispatchEnv, ride *models.Ride, driver *models.Driver) {
	t.Helper()
	ctx := context.Background()
	if _, err := env.dispatch.AcceptRide(ctx, driver.ID, ride.ID); err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}
	if _, err := env.rides.StartRide(ctx, driver.ID, ride.ID); err != nil {
		t.Fatalf("StartRide: %v", err)
	}
	if _, err := env.rides.CompleteRide(ctx, driver.ID, ride.ID, models.NewGeoPoint(52.53, 13.41)); err != nil {
		t.Fatalf("CompleteRide: %v", err)
	}
}

func TestRatingsAreDisjoint(t *testing.T) {
	env := newDispatchEnv(t)
	ride := env.requestRide(t)
	driver := env.seedDriver(t)
	ctx := context.Background()

	completeRide(t, env, ride, driver)

	priceBefore, _ := env.rides.GetRide(ctx, ride.ID)

	if err := env.rides.RateByPassenger(ctx, ride.PassengerID, ride.ID, 5, "smooth"); err != nil {
		t.Fatalf("RateByPassenger: %v", err)
	}
	if err := env.rides.RateByDriver(ctx, driver.ID, ride.ID, 4, "polite"); err != nil {
		t.Fatalf("RateByDriver: %v", err)
	}

	rated, err := env.rides.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("GetRide: %v", err)
	}
	if rated.PassengerRating == nil || rated.PassengerRating.Stars != 5 {
		t.Error("passenger rating missing")
	}
	if rated.DriverRating == nil || rated.DriverRating.Stars != 4 {
		t.Error("driver rating missing")
	}

	// Rating writes touch only the rating sub-records.
	if rated.Price != priceBefore.Price || rated.Status != models.RideStatusCompleted {
		t.Error("rating write reached beyond its sub-record")
	}

	// Second rating from either side is rejected.
	if err := env.rides.RateByPassenger(ctx, ride.PassengerID, ride.ID, 1, ""); !errors.Is(err, models.ErrAlreadyRated) {
		t.Errorf("re-rating err = %v, want ErrAlreadyRated", err)
	}
	if err := env.rides.RateByDriver(ctx, driver.ID, ride.ID, 1, ""); !errors.Is(err, models.ErrAlreadyRated) {
		t.Errorf("re-rating err = %v, want ErrAlreadyRated", err)
	}
}

func TestRatingBounds(t *testing.T) {
	env := newDispatchEnv(t)
	ride := env.requestRide(t)
	driver := env.seedDriver(t)

	completeRide(t, env, ride, driver)

	for _, stars := range []float64{0, 0.5, 5.5, 6, -1} {
		if err := env.rides.RateByPassenger(context.Background(), ride.PassengerID, ride.ID, stars, ""); err == nil {
			t.Errorf("rating %v accepted, want rejection", stars)
		}
	}
}

func TestDriverRatingAggregate(t *testing.T) {
	env := newDispatchEnv(t)
	driver := env.seedDriver(t)
	ctx := context.Background()

	stars := []float64{5, 4, 3}
	for _, s := range stars {
		ride := env.requestRide(t)
		completeRide(t, env, ride, driver)
		if err := env.rides.RateByPassenger(ctx, ride.PassengerID, ride.ID, s, ""); err != nil {
			t.Fatalf("RateByPassenger(%v): %v", s, err)
		}
	}

	updated, err := env.driverRepo.GetByID(ctx, driver.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.TotalRatings != 3 {
		t.Errorf("total_ratings = %d, want 3", updated.TotalRatings)
	}
	if math.Abs(updated.Rating-4.0) > 1e-9 {
		t.Errorf("rating = %v, want 4.0", updated.Rating)
	}
}
