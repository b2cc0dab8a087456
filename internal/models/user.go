package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRole string

const (
	RolePassenger UserRole = "passenger"
	RoleDriver    UserRole = "driver"
	RoleAdmin     UserRole = "admin"
)

// DeviceToken is one registered push target for a user.
type DeviceToken struct {
	Platform string `json:"platform" bson:"platform"` // fcm, apns
	Token    string `json:"token" bson:"token"`
}

// User is the identity record the external auth provider maintains. The
// core only reads it for display data and push targets.
type User struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Phone        string             `json:"phone" bson:"phone"`
	Email        string             `json:"email" bson:"email"`
	Role         UserRole           `json:"role" bson:"role" default:"passenger"`
	DeviceTokens []DeviceToken      `json:"device_tokens" bson:"device_tokens"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

func (u *User) Party() PartyInfo {
	return PartyInfo{Name: u.Name, Phone: u.Phone}
}
