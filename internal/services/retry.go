package services

import (
	"context"
	"errors"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/utils"
)

// withRetry re-runs op on transient store failures with bounded exponential
// backoff. Precondition failures are permanent: a ride lost to another
// driver stays lost, so retrying a conditional write would only lie to the
// caller.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	delay := utils.RetryBaseDelay

	for attempt := 1; attempt <= utils.MaxStoreAttempts; attempt++ {
		err = op()
		if err == nil || isPermanent(err) {
			return err
		}
		if attempt == utils.MaxStoreAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}

	return err
}

func isPermanent(err error) bool {
	return errors.Is(err, models.ErrRideUnavailable) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrAlreadyRated) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
