package models

import "errors"

// Storage-level sentinel errors shared by repositories and services.
var (
	// ErrNotFound: the document does not exist in the queried collection.
	// For rides this is not proof of absence; terminal rides live in the
	// historical collections.
	ErrNotFound = errors.New("not found")

	// ErrRideUnavailable: a conditional ride write found its precondition
	// violated (already accepted, cancelled or relocated). Never retried.
	ErrRideUnavailable = errors.New("ride no longer available")

	// ErrAlreadyRated: the party's rating sub-record is already set.
	ErrAlreadyRated = errors.New("ride already rated")
)
