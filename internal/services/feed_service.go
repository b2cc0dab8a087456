package services

import (
	"context"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/pkg/logger"
	"ridelink/pkg/websocket"
)

// RideFeedService keeps connected drivers' open-ride lists consistent by
// relaying the pending-rides change stream into the drivers room. Unlike
// the point notification sent at request time, the stream also covers
// rides that leave the pending state, and it works across multiple server
// instances sharing one database.
type RideFeedService interface {
	// Run blocks relaying events until ctx is cancelled.
	Run(ctx context.Context)
}

type rideFeedService struct {
	rideRepo interfaces.RideRepository
	hub      *websocket.Hub
	logger   *logger.Logger
}

func NewRideFeedService(rideRepo interfaces.RideRepository, hub *websocket.Hub, log *logger.Logger) RideFeedService {
	return &rideFeedService{
		rideRepo: rideRepo,
		hub:      hub,
		logger:   log,
	}
}

func (s *rideFeedService) Run(ctx context.Context) {
	for {
		if err := s.relay(ctx); err != nil {
			s.logger.WithError(err).Warn("ride feed stream failed, reopening")
		}

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (s *rideFeedService) relay(ctx context.Context) error {
	events, err := s.rideRepo.WatchPendingRides(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			s.broadcast(event)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *rideFeedService) broadcast(event models.RideEvent) {
	switch event.Type {
	case models.RideEventRemoved:
		// The ride left the pending pool; drivers drop it from their list.
		s.hub.BroadcastToDrivers(websocket.Message{
			Type: "ride_gone",
			Data: map[string]interface{}{"ride_id": event.RideID.Hex()},
		})
	default:
		if event.Ride == nil || event.Ride.Status != models.RideStatusPending {
			return
		}
		s.hub.BroadcastToDrivers(websocket.Message{
			Type: "pending_ride",
			Data: rideData(event.Ride),
		})
	}
}
