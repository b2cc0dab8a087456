package models

// GeoPoint is a GeoJSON point, stored as [lng, lat] so mongo 2dsphere
// indexes work on it directly.
type GeoPoint struct {
	Type        string    `json:"type" bson:"type" default:"Point"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"required,len=2"`
}

func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: []float64{lng, lat},
	}
}

func (p GeoPoint) Latitude() float64 {
	if len(p.Coordinates) >= 2 {
		return p.Coordinates[1]
	}
	return 0
}

func (p GeoPoint) Longitude() float64 {
	if len(p.Coordinates) >= 1 {
		return p.Coordinates[0]
	}
	return 0
}

func (p GeoPoint) IsZero() bool {
	return len(p.Coordinates) < 2
}

// TripPoint is an endpoint of a ride: a named place plus its coordinates.
// Immutable after ride creation.
type TripPoint struct {
	Place    string   `json:"place" bson:"place"`
	Address  string   `json:"address" bson:"address"`
	Location GeoPoint `json:"location" bson:"location" validate:"required"`
}
