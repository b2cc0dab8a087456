package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverApprovalStatus string

const (
	DriverApprovalPending  DriverApprovalStatus = "pending"
	DriverApprovalApproved DriverApprovalStatus = "approved"
	DriverApprovalRejected DriverApprovalStatus = "rejected"
)

// VehicleProfile is the driver's vehicle data shown to passengers. All
// three fields must be present before the driver may accept rides.
type VehicleProfile struct {
	Model string `json:"model" bson:"model"`
	Plate string `json:"plate" bson:"plate"`
	Color string `json:"color" bson:"color"`
}

func (v VehicleProfile) Complete() bool {
	return v.Model != "" && v.Plate != "" && v.Color != ""
}

type Driver struct {
	ID     primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	Name   string             `json:"name" bson:"name"`
	Phone  string             `json:"phone" bson:"phone"`

	Status  DriverApprovalStatus `json:"status" bson:"status" default:"pending"`
	Vehicle VehicleProfile       `json:"vehicle" bson:"vehicle"`

	IsOnline           bool       `json:"is_online" bson:"is_online" default:"false"`
	CurrentLocation    *GeoPoint  `json:"current_location" bson:"current_location"`
	LastLocationUpdate *time.Time `json:"last_location_update" bson:"last_location_update"`

	Rating       float64 `json:"rating" bson:"rating" default:"0"`
	TotalRatings int64   `json:"total_ratings" bson:"total_ratings" default:"0"`
	TotalRides   int64   `json:"total_rides" bson:"total_rides" default:"0"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// PresenceFresh reports whether the driver's last location sample is recent
// enough to trust. An online flag with a stale sample means the client died
// without clearing it.
func (d *Driver) PresenceFresh(now time.Time, window time.Duration) bool {
	if d.LastLocationUpdate == nil {
		return false
	}
	return now.Sub(*d.LastLocationUpdate) <= window
}

// MatchingEligible reports whether the driver may be offered pending rides.
func (d *Driver) MatchingEligible(now time.Time, freshness time.Duration) bool {
	return d.Status == DriverApprovalApproved && d.IsOnline && d.PresenceFresh(now, freshness)
}
