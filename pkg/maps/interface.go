package maps

import "context"

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RouteEstimate is the routed distance and travel time between two points.
type RouteEstimate struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds int     `json:"duration_seconds"`
}

// Provider resolves routed distance and duration. Implementations may be
// slow or fail; callers fall back to straight-line estimates.
type Provider interface {
	DistanceAndDuration(ctx context.Context, origin, destination LatLng) (*RouteEstimate, error)
}
