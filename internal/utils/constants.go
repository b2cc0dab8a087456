package utils

import "time"

// Application constants
const (
	AppName    = "RideLink"
	AppVersion = "1.0.0"

	DefaultCurrency = "USD"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Dispatch
	DefaultSearchRadiusKM = 10.0
	MaxSearchRadiusKM     = 50.0
	AssignmentPollEvery   = 3 * time.Second
	AssignmentWaitCap     = 5 * time.Minute

	// Presence
	PresenceFreshness      = 15 * time.Minute
	LocationReportMinEvery = 10 * time.Second
	DefaultCitySpeedKMH    = 30.0

	// Retries
	MaxStoreAttempts = 3
	RetryBaseDelay   = 200 * time.Millisecond

	// Ratings
	MinRideRating = 1.0
	MaxRideRating = 5.0

	// Response status
	StatusSuccess = "success"
	StatusError   = "error"
)
