package services

import (
	"context"
	"fmt"
	"time"

	"ridelink/internal/config"
	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PresenceService tracks driver availability. The driver's own client is
// the only writer of its presence record; everything else only reads it.
type PresenceService interface {
	GoOnline(ctx context.Context, driverID primitive.ObjectID, location models.GeoPoint) error
	GoOffline(ctx context.Context, driverID primitive.ObjectID) error

	// ReportLocation stores a position sample. Samples arriving faster
	// than the configured minimum interval are dropped without error.
	ReportLocation(ctx context.Context, driverID primitive.ObjectID, location models.GeoPoint) error

	// NearbyDrivers returns matching-eligible drivers around a point.
	NearbyDrivers(ctx context.Context, lat, lng, radiusKM float64) ([]*models.Driver, error)
}

type presenceService struct {
	driverRepo interfaces.DriverRepository
	cache      CacheService
	config     *config.DispatchConfig
	logger     *logger.Logger
}

func NewPresenceService(driverRepo interfaces.DriverRepository, cache CacheService, cfg *config.DispatchConfig, log *logger.Logger) PresenceService {
	return &presenceService{
		driverRepo: driverRepo,
		cache:      cache,
		config:     cfg,
		logger:     log,
	}
}

func (s *presenceService) GoOnline(ctx context.Context, driverID primitive.ObjectID, location models.GeoPoint) error {
	if location.IsZero() {
		return fmt.Errorf("go-online requires a location")
	}

	err := withRetry(ctx, func() error {
		return s.driverRepo.SetOnline(ctx, driverID, location)
	})
	if err != nil {
		return fmt.Errorf("failed to set driver online: %w", err)
	}

	s.logger.LogPresenceEvent(driverID, "go_online", true)

	return nil
}

func (s *presenceService) GoOffline(ctx context.Context, driverID primitive.ObjectID) error {
	err := withRetry(ctx, func() error {
		return s.driverRepo.SetOffline(ctx, driverID)
	})
	if err != nil {
		return fmt.Errorf("failed to set driver offline: %w", err)
	}

	s.logger.LogPresenceEvent(driverID, "go_offline", false)

	return nil
}

func (s *presenceService) ReportLocation(ctx context.Context, driverID primitive.ObjectID, location models.GeoPoint) error {
	if location.IsZero() {
		return fmt.Errorf("location sample has no coordinates")
	}

	// Throttle: at most one stored sample per driver per interval. The
	// redis key doubles as the interval marker; a dropped sample is not an
	// error, the next tick carries fresher data anyway.
	if s.cache != nil {
		throttleKey := fmt.Sprintf("presence:throttle:%s", driverID.Hex())
		acquired, err := s.cache.SetNX(ctx, throttleKey, time.Now().Unix(), s.config.LocationMinEvery)
		if err != nil {
			s.logger.WithError(err).WithDriverID(driverID).Warn("presence throttle check failed")
		} else if !acquired {
			return nil
		}
	}

	if err := s.driverRepo.UpdateLocation(ctx, driverID, location); err != nil {
		// Logged, not surfaced; the next sample retries naturally.
		s.logger.WithError(err).WithDriverID(driverID).Warn("failed to store location sample")
	}

	return nil
}

func (s *presenceService) NearbyDrivers(ctx context.Context, lat, lng, radiusKM float64) ([]*models.Driver, error) {
	if radiusKM <= 0 || radiusKM > 50 {
		radiusKM = s.config.SearchRadiusKM
	}

	freshSince := time.Now().Add(-s.config.PresenceFreshness)
	drivers, err := s.driverRepo.GetNearby(ctx, lat, lng, radiusKM, freshSince)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby drivers: %w", err)
	}

	return drivers, nil
}
