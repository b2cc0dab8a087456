package services

import (
	"context"
	"math"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"
	"ridelink/pkg/maps"
)

// WeatherProvider answers whether it is currently raining near a point.
// External collaborator; a failure defaults to no rain.
type WeatherProvider interface {
	IsRaining(ctx context.Context, lat, lng float64) (bool, error)
}

// TripQuote is a priced route estimate for one vehicle category.
type TripQuote struct {
	DistanceMeters  float64                 `json:"distance_meters"`
	DurationSeconds int                     `json:"duration_seconds"`
	Price           float64                 `json:"price"`
	Currency        string                  `json:"currency"`
	Category        models.CategorySnapshot `json:"category"`
}

type PricingService interface {
	// Quote computes the fare for a trip against a category snapshot.
	// Deterministic and side-effect-free.
	Quote(distanceMeters float64, durationSeconds int, category models.CategorySnapshot, now time.Time, isRaining bool) float64

	// QuoteTrip resolves route distance and duration for the trip, then
	// prices it. Falls back to a straight-line estimate when the routing
	// provider is unavailable.
	QuoteTrip(ctx context.Context, origin, destination models.GeoPoint, category models.CategorySnapshot) (*TripQuote, error)
}

type pricingService struct {
	maps    maps.Provider
	weather WeatherProvider
	logger  *logger.Logger
}

func NewPricingService(mapsProvider maps.Provider, weather WeatherProvider, log *logger.Logger) PricingService {
	return &pricingService{
		maps:    mapsProvider,
		weather: weather,
		logger:  log,
	}
}

// Quote applies the category's commercial terms in a fixed order: base
// price, linear per-km charge on the distance beyond the included minimum,
// per-minute charge with minutes rounded up, peak multiplier, rain
// multiplier, minimum-price floor, currency rounding.
//
// Malformed category data (negative rates, zero-value snapshot) prices
// conservatively at the category floor instead of failing the quote.
func (s *pricingService) Quote(distanceMeters float64, durationSeconds int, category models.CategorySnapshot, now time.Time, isRaining bool) float64 {
	if !validSnapshot(category) {
		return utils.RoundCurrency(category.MinPrice)
	}

	distanceKM := distanceMeters / 1000

	price := category.BasePrice
	if excess := distanceKM - category.MinDistanceKM; excess > 0 {
		price += excess * category.PricePerKM
	}
	if durationSeconds > 0 {
		minutes := math.Ceil(float64(durationSeconds) / 60)
		price += minutes * category.PricePerMinute
	}

	if category.DynamicPricing.InPeakHours(now) && category.DynamicPricing.PeakHoursMultiplier > 0 {
		price *= category.DynamicPricing.PeakHoursMultiplier
	}
	if isRaining && category.DynamicPricing.RainMultiplier > 0 {
		price *= category.DynamicPricing.RainMultiplier
	}

	if price < category.MinPrice {
		price = category.MinPrice
	}

	return utils.RoundCurrency(price)
}

func (s *pricingService) QuoteTrip(ctx context.Context, origin, destination models.GeoPoint, category models.CategorySnapshot) (*TripQuote, error) {
	distanceMeters, durationSeconds := s.resolveRoute(ctx, origin, destination)

	isRaining := false
	if s.weather != nil {
		raining, err := s.weather.IsRaining(ctx, origin.Latitude(), origin.Longitude())
		if err != nil {
			s.logger.WithError(err).Warn("weather lookup failed, assuming no rain")
		} else {
			isRaining = raining
		}
	}

	price := s.Quote(distanceMeters, durationSeconds, category, time.Now(), isRaining)

	return &TripQuote{
		DistanceMeters:  distanceMeters,
		DurationSeconds: durationSeconds,
		Price:           price,
		Currency:        category.Currency,
		Category:        category,
	}, nil
}

func (s *pricingService) resolveRoute(ctx context.Context, origin, destination models.GeoPoint) (float64, int) {
	if s.maps != nil {
		estimate, err := s.maps.DistanceAndDuration(ctx,
			maps.LatLng{Latitude: origin.Latitude(), Longitude: origin.Longitude()},
			maps.LatLng{Latitude: destination.Latitude(), Longitude: destination.Longitude()})
		if err == nil {
			return estimate.DistanceMeters, estimate.DurationSeconds
		}
		s.logger.WithError(err).Warn("routing provider failed, using straight-line estimate")
	}

	distanceKM := utils.CalculateDistance(
		origin.Latitude(), origin.Longitude(),
		destination.Latitude(), destination.Longitude())

	return distanceKM * 1000, utils.EstimateDurationSeconds(distanceKM, utils.DefaultCitySpeedKMH)
}

func validSnapshot(c models.CategorySnapshot) bool {
	if c.BasePrice < 0 || c.PricePerKM < 0 || c.PricePerMinute < 0 {
		return false
	}
	if c.MinDistanceKM < 0 || c.MinPrice < 0 {
		return false
	}
	if c.BasePrice == 0 && c.PricePerKM == 0 && c.MinPrice == 0 {
		return false
	}
	return true
}
