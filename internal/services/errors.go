package services

import "errors"

// Service-level sentinel errors. Handlers map these to HTTP statuses.
var (
	// ErrInvalidTransition: the requested lifecycle change is not legal
	// from the ride's current status.
	ErrInvalidTransition = errors.New("invalid ride state transition")

	// ErrIncompleteProfile: the driver's vehicle profile is missing fields
	// required before accepting rides.
	ErrIncompleteProfile = errors.New("driver vehicle profile incomplete")

	// ErrDriverNotEligible: the driver is not approved, not online, or has
	// no fresh location sample.
	ErrDriverNotEligible = errors.New("driver not eligible for dispatch")

	// ErrNotAuthorized: the caller is not a party to the ride.
	ErrNotAuthorized = errors.New("not a party to this ride")

	// ErrActiveRideExists: the passenger already has a pending or ongoing
	// ride and may not open another.
	ErrActiveRideExists = errors.New("an active ride already exists")

	// ErrAwaitTimeout: no driver accepted within the assignment wait cap.
	ErrAwaitTimeout = errors.New("no driver assigned within wait window")
)
