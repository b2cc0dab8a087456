package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ridelink/internal/models"
)

// Any number of drivers may race for the same pending ride; exactly one
// wins and every loser sees a precondition failure, never a silently
// overwritten driver.
func TestConcurrentAcceptExactlyOneWinner(t *testing.T) {
	env := newDispatchEnv(t)
	ride := env.requestRide(t)

	const contenders = 32
	drivers := make([]*models.Driver, contenders)
	for i := range drivers {
		drivers[i] = env.seedDriver(t)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	losers := 0

	for _, driver := range drivers {
		wg.Add(1)
		go func(d *models.Driver) {
			defer wg.Done()
			_, err := env.dispatch.AcceptRide(context.Background(), d.ID, ride.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, models.ErrRideUnavailable):
				losers++
			default:
				t.Errorf("unexpected accept error: %v", err)
			}
		}(driver)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if losers != contenders-1 {
		t.Fatalf("losers = %d, want %d", losers, contenders-1)
	}

	stored, err := env.rideRepo.GetByID(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != models.RideStatusAccepted {
		t.Errorf("status = %s, want accepted", stored.Status)
	}
	if stored.DriverID == nil {
		t.Fatal("no driver attached after the race")
	}

	found := false
	for _, d := range drivers {
		if *stored.DriverID == d.ID {
			found = true
		}
	}
	if !found {
		t.Error("attached driver is not one of the contenders")
	}
}

// Accept racing a passenger cancellation: either the cancel lands first and
// every accept fails, or one accept lands first and the cancel fails.
func TestAcceptVersusCancelRace(t *testing.T) {
	for i := 0; i < 20; i++ {
		env := newDispatchEnv(t)
		ride := env.requestRide(t)
		driver := env.seedDriver(t)

		var wg sync.WaitGroup
		var acceptErr, cancelErr error

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = env.dispatch.AcceptRide(context.Background(), driver.ID, ride.ID)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = env.rides.CancelByPassenger(context.Background(), ride.PassengerID, ride.ID, "race")
		}()
		wg.Wait()

		acceptWon := acceptErr == nil
		cancelWon := cancelErr == nil

		if acceptWon && cancelWon {
			// Legal: cancel from accepted is allowed, so both can succeed
			// in sequence. The ride must then be cancelled with a driver.
			historical, err := env.rideRepo.GetFromHistory(context.Background(), ride.ID)
			if err != nil {
				t.Fatalf("iteration %d: ride missing from history: %v", i, err)
			}
			if historical.Status != models.RideStatusCancelled {
				t.Fatalf("iteration %d: status = %s", i, historical.Status)
			}
			continue
		}
		if !acceptWon && !cancelWon {
			t.Fatalf("iteration %d: both operations failed (accept=%v cancel=%v)", i, acceptErr, cancelErr)
		}
	}
}

// Concurrent rating writes: each side's sub-record is written at most once.
func TestConcurrentRatingWrites(t *testing.T) {
	env := newDispatchEnv(t)
	ride := env.requestRide(t)
	driver := env.seedDriver(t)

	if _, err := env.dispatch.AcceptRide(context.Background(), driver.ID, ride.ID); err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}
	if _, err := env.rides.StartRide(context.Background(), driver.ID, ride.ID); err != nil {
		t.Fatalf("StartRide: %v", err)
	}
	if _, err := env.rides.CompleteRide(context.Background(), driver.ID, ride.ID, models.NewGeoPoint(52.53, 13.41)); err != nil {
		t.Fatalf("CompleteRide: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := env.rides.RateByPassenger(context.Background(), ride.PassengerID, ride.ID, 5, "great")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if !errors.Is(err, models.ErrAlreadyRated) {
				t.Errorf("unexpected rating error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("rating successes = %d, want exactly 1", successes)
	}
}
