package services

import (
	"context"
	"testing"
	"time"

	"ridelink/internal/models"
	"ridelink/pkg/logger"
)

func testCategory() models.CategorySnapshot {
	return models.CategorySnapshot{
		Name:          "Economy",
		BasePrice:     8,
		PricePerKM:    2,
		MinDistanceKM: 3,
		MinPrice:      8,
		Currency:      "USD",
		DynamicPricing: models.DynamicPricing{
			RainMultiplier:      1.0,
			PeakHoursMultiplier: 1.0,
		},
	}
}

func offPeak() time.Time {
	t, _ := time.Parse("2006-01-02 15:04", "2024-03-15 12:00")
	return t
}

func newTestPricing() PricingService {
	return NewPricingService(nil, nil, logger.NewNop())
}

func TestQuoteHappyPath(t *testing.T) {
	p := newTestPricing()

	// 5 km, 2 km over the included minimum: 8 + 2*2 = 12.00
	got := p.Quote(5000, 600, testCategory(), offPeak(), false)
	if got != 12.00 {
		t.Errorf("Quote = %v, want 12.00", got)
	}
}

func TestQuoteMinimumFloor(t *testing.T) {
	p := newTestPricing()

	// 1 km, entirely inside the included minimum: floor at minPrice.
	got := p.Quote(1000, 60, testCategory(), offPeak(), false)
	if got != 8.00 {
		t.Errorf("Quote = %v, want 8.00", got)
	}
}

func TestQuotePeakMultiplier(t *testing.T) {
	p := newTestPricing()

	category := testCategory()
	category.DynamicPricing.PeakHoursMultiplier = 1.5
	category.DynamicPricing.PeakHours = []models.PeakWindow{{Start: "11:00", End: "13:00"}}

	// 12 * 1.5 = 18.00
	got := p.Quote(5000, 600, category, offPeak(), false)
	if got != 18.00 {
		t.Errorf("Quote = %v, want 18.00", got)
	}
}

func TestQuoteRainMultiplier(t *testing.T) {
	p := newTestPricing()

	category := testCategory()
	category.DynamicPricing.RainMultiplier = 1.2

	got := p.Quote(5000, 600, category, offPeak(), true)
	if got != 14.40 {
		t.Errorf("Quote with rain = %v, want 14.40", got)
	}

	// No rain leaves the multiplier unused.
	if got := p.Quote(5000, 600, category, offPeak(), false); got != 12.00 {
		t.Errorf("Quote without rain = %v, want 12.00", got)
	}
}

func TestQuoteExactMinDistance(t *testing.T) {
	p := newTestPricing()

	// Distance equal to the included minimum adds no per-km charge.
	got := p.Quote(3000, 0, testCategory(), offPeak(), false)
	if got != 8.00 {
		t.Errorf("Quote at exact minDistance = %v, want 8.00", got)
	}
}

func TestQuoteZeroTrip(t *testing.T) {
	p := newTestPricing()

	category := testCategory()
	category.MinPrice = 10

	// distance <= minDistance and duration <= 0 means max(basePrice, minPrice).
	got := p.Quote(0, 0, category, offPeak(), false)
	if got != 10.00 {
		t.Errorf("Quote(0, 0) = %v, want 10.00", got)
	}
}

func TestQuoteFractionalKilometers(t *testing.T) {
	p := newTestPricing()

	// Excess distance is charged linearly: 4.5 km is 1.5 km over, 8 + 3 = 11.
	got := p.Quote(4500, 0, testCategory(), offPeak(), false)
	if got != 11.00 {
		t.Errorf("Quote(4500m) = %v, want 11.00", got)
	}
}

func TestQuoteDurationRoundsUp(t *testing.T) {
	p := newTestPricing()

	category := testCategory()
	category.PricePerMinute = 1

	// 61 seconds bills as 2 minutes.
	got := p.Quote(1000, 61, category, offPeak(), false)
	if got != 10.00 {
		t.Errorf("Quote(61s) = %v, want 10.00", got)
	}
}

func TestQuoteMonotonicInDistanceAndDuration(t *testing.T) {
	p := newTestPricing()

	category := testCategory()
	category.PricePerMinute = 0.5

	prev := 0.0
	for meters := 0.0; meters <= 20000; meters += 500 {
		got := p.Quote(meters, 300, category, offPeak(), false)
		if got < prev {
			t.Fatalf("price decreased with distance: %v at %vm after %v", got, meters, prev)
		}
		prev = got
	}

	prev = 0.0
	for seconds := 0; seconds <= 3600; seconds += 60 {
		got := p.Quote(5000, seconds, category, offPeak(), false)
		if got < prev {
			t.Fatalf("price decreased with duration: %v at %vs after %v", got, seconds, prev)
		}
		prev = got
	}
}

func TestQuoteMalformedCategory(t *testing.T) {
	p := newTestPricing()

	category := testCategory()
	category.PricePerKM = -2

	// Malformed terms price conservatively at the category floor.
	got := p.Quote(5000, 600, category, offPeak(), false)
	if got != category.MinPrice {
		t.Errorf("Quote with malformed category = %v, want %v", got, category.MinPrice)
	}

	zero := models.CategorySnapshot{}
	if got := p.Quote(5000, 600, zero, offPeak(), false); got != 0 {
		t.Errorf("Quote with zero-value category = %v, want 0", got)
	}
}

func TestQuoteFloorAppliedAfterMultipliers(t *testing.T) {
	p := newTestPricing()

	category := testCategory()
	category.BasePrice = 2
	category.MinPrice = 8
	category.DynamicPricing.PeakHoursMultiplier = 1.5
	category.DynamicPricing.PeakHours = []models.PeakWindow{{Start: "11:00", End: "13:00"}}

	// 2 * 1.5 = 3, still under the floor.
	got := p.Quote(1000, 0, category, offPeak(), false)
	if got != 8.00 {
		t.Errorf("Quote = %v, want floor 8.00", got)
	}
}

func TestQuoteTripFallsBackToStraightLine(t *testing.T) {
	p := newTestPricing() // no routing provider configured

	origin := models.NewGeoPoint(52.5200, 13.4050)
	destination := models.NewGeoPoint(52.5300, 13.4050)

	quote, err := p.QuoteTrip(context.Background(), origin, destination, testCategory())
	if err != nil {
		t.Fatalf("QuoteTrip: %v", err)
	}
	if quote.DistanceMeters <= 0 {
		t.Error("expected a positive straight-line distance")
	}
	if quote.DurationSeconds <= 0 {
		t.Error("expected a positive estimated duration")
	}
	if quote.Price < testCategory().MinPrice {
		t.Errorf("price %v below category floor", quote.Price)
	}
}
