package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string

const (
	RideStatusPending    RideStatus = "pending"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// rideTransitions is the legal forward transition graph. A cancelled or
// completed ride never transitions again; in-progress rides cannot be
// cancelled through the normal flow.
var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusPending:    {RideStatusAccepted, RideStatusCancelled},
	RideStatusAccepted:   {RideStatusInProgress, RideStatusCancelled},
	RideStatusInProgress: {RideStatusCompleted},
}

func CanTransition(from, to RideStatus) bool {
	for _, next := range rideTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// PartyInfo is the denormalized display data for one side of a ride, so
// clients never join against the users collection to render a trip card.
type PartyInfo struct {
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone" bson:"phone"`
}

// RideRating is one party's post-completion rating of the other. Passenger
// and driver ratings are disjoint sub-records: a rating write can only ever
// touch its own sub-record, never price, parties or status.
type RideRating struct {
	Stars   float64   `json:"stars" bson:"stars" validate:"min=1,max=5"`
	Comment string    `json:"comment" bson:"comment"`
	RatedAt time.Time `json:"rated_at" bson:"rated_at"`
}

type Ride struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	PassengerID primitive.ObjectID  `json:"passenger_id" bson:"passenger_id" validate:"required"`
	DriverID    *primitive.ObjectID `json:"driver_id" bson:"driver_id"`
	Passenger   PartyInfo           `json:"passenger" bson:"passenger"`
	Driver      *PartyInfo          `json:"driver" bson:"driver"`
	Vehicle     *VehicleProfile     `json:"vehicle" bson:"vehicle"`

	Origin      TripPoint `json:"origin" bson:"origin" validate:"required"`
	Destination TripPoint `json:"destination" bson:"destination" validate:"required"`

	Category        CategorySnapshot `json:"category" bson:"category"`
	Price           float64          `json:"price" bson:"price"`
	DistanceMeters  float64          `json:"distance_meters" bson:"distance_meters"`
	DurationSeconds int              `json:"duration_seconds" bson:"duration_seconds"`
	PaymentMethod   string           `json:"payment_method" bson:"payment_method" default:"cash"`

	Status        RideStatus `json:"status" bson:"status" default:"pending"`
	DriverArrived bool       `json:"driver_arrived" bson:"driver_arrived"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at" bson:"accepted_at"`
	ArrivedAt   *time.Time `json:"arrived_at" bson:"arrived_at"`
	StartedAt   *time.Time `json:"started_at" bson:"started_at"`
	CompletedAt *time.Time `json:"completed_at" bson:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at" bson:"cancelled_at"`

	CompletedBy   string    `json:"completed_by" bson:"completed_by"`
	CancelledBy   string    `json:"cancelled_by" bson:"cancelled_by"`
	CancelReason  string    `json:"cancel_reason" bson:"cancel_reason"`
	FinalLocation *GeoPoint `json:"final_location" bson:"final_location"`

	PassengerRating *RideRating `json:"passenger_rating" bson:"passenger_rating"`
	DriverRating    *RideRating `json:"driver_rating" bson:"driver_rating"`
}

func (r *Ride) HasDriver() bool {
	return r.DriverID != nil && !r.DriverID.IsZero()
}

// RideEventType classifies a change-stream event on a ride document.
type RideEventType string

const (
	RideEventCreated RideEventType = "created"
	RideEventUpdated RideEventType = "updated"
	RideEventRemoved RideEventType = "removed"
)

// RideEvent is one snapshot delivered on a ride subscription. Ride is nil
// for remove events; the document has been relocated to a historical
// collection and the subscriber should look it up there.
type RideEvent struct {
	Type   RideEventType
	RideID primitive.ObjectID
	Ride   *Ride
}
