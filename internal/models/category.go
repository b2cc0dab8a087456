package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PeakWindow is a daily time window compared as HH:MM strings.
// Both ends are inclusive.
type PeakWindow struct {
	Start string `json:"start" bson:"start"`
	End   string `json:"end" bson:"end"`
}

func (w PeakWindow) Contains(t time.Time) bool {
	hhmm := t.Format("15:04")
	if w.Start == "" || w.End == "" || w.Start > w.End {
		return false
	}
	return hhmm >= w.Start && hhmm <= w.End
}

type DynamicPricing struct {
	RainMultiplier      float64      `json:"rain_multiplier" bson:"rain_multiplier" default:"1.0"`
	PeakHoursMultiplier float64      `json:"peak_hours_multiplier" bson:"peak_hours_multiplier" default:"1.0"`
	PeakHours           []PeakWindow `json:"peak_hours" bson:"peak_hours"`
}

func (d DynamicPricing) InPeakHours(t time.Time) bool {
	for _, w := range d.PeakHours {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// VehicleCategory is an admin-managed pricing template. Rides never hold a
// live reference to it; they capture a CategorySnapshot at creation time.
type VehicleCategory struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name" validate:"required"`
	Description    string             `json:"description" bson:"description"`
	ImageURL       string             `json:"image_url" bson:"image_url"`
	Seats          int                `json:"seats" bson:"seats" default:"4"`
	BasePrice      float64            `json:"base_price" bson:"base_price" validate:"required"`
	PricePerKM     float64            `json:"price_per_km" bson:"price_per_km" validate:"required"`
	PricePerMinute float64            `json:"price_per_minute" bson:"price_per_minute"`
	MinDistanceKM  float64            `json:"min_distance_km" bson:"min_distance_km"`
	MinPrice       float64            `json:"min_price" bson:"min_price" validate:"required"`
	DynamicPricing DynamicPricing     `json:"dynamic_pricing" bson:"dynamic_pricing"`
	Currency       string             `json:"currency" bson:"currency" default:"USD"`
	IsActive       bool               `json:"is_active" bson:"is_active" default:"true"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// CategorySnapshot is the value copy of a category's commercial terms
// embedded into a ride. Later edits to the category never touch it.
type CategorySnapshot struct {
	CategoryID     primitive.ObjectID `json:"category_id" bson:"category_id"`
	Name           string             `json:"name" bson:"name"`
	BasePrice      float64            `json:"base_price" bson:"base_price"`
	PricePerKM     float64            `json:"price_per_km" bson:"price_per_km"`
	PricePerMinute float64            `json:"price_per_minute" bson:"price_per_minute"`
	MinDistanceKM  float64            `json:"min_distance_km" bson:"min_distance_km"`
	MinPrice       float64            `json:"min_price" bson:"min_price"`
	DynamicPricing DynamicPricing     `json:"dynamic_pricing" bson:"dynamic_pricing"`
	Currency       string             `json:"currency" bson:"currency"`
}

func (c *VehicleCategory) Snapshot() CategorySnapshot {
	snap := CategorySnapshot{
		CategoryID:     c.ID,
		Name:           c.Name,
		BasePrice:      c.BasePrice,
		PricePerKM:     c.PricePerKM,
		PricePerMinute: c.PricePerMinute,
		MinDistanceKM:  c.MinDistanceKM,
		MinPrice:       c.MinPrice,
		Currency:       c.Currency,
		DynamicPricing: DynamicPricing{
			RainMultiplier:      c.DynamicPricing.RainMultiplier,
			PeakHoursMultiplier: c.DynamicPricing.PeakHoursMultiplier,
		},
	}
	snap.DynamicPricing.PeakHours = append([]PeakWindow(nil), c.DynamicPricing.PeakHours...)
	return snap
}

func (c *VehicleCategory) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("category name is required")
	}
	if c.BasePrice < 0 || c.PricePerKM < 0 || c.PricePerMinute < 0 {
		return fmt.Errorf("category rates must not be negative")
	}
	if c.MinPrice < 0 || c.MinDistanceKM < 0 {
		return fmt.Errorf("category minimums must not be negative")
	}
	for _, w := range c.DynamicPricing.PeakHours {
		if w.Start == "" || w.End == "" || w.Start > w.End {
			return fmt.Errorf("invalid peak window %s-%s", w.Start, w.End)
		}
	}
	return nil
}
