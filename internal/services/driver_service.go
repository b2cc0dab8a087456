package services

import (
	"context"
	"errors"
	"fmt"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DriverService manages driver profiles and the admin approval flow.
type DriverService interface {
	Register(ctx context.Context, userID primitive.ObjectID, name, phone string, vehicle models.VehicleProfile) (*models.Driver, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error)
	UpdateVehicle(ctx context.Context, id primitive.ObjectID, vehicle models.VehicleProfile) error
	SetApproval(ctx context.Context, id primitive.ObjectID, status models.DriverApprovalStatus) error
}

type driverService struct {
	driverRepo interfaces.DriverRepository
	logger     *logger.Logger
}

func NewDriverService(driverRepo interfaces.DriverRepository, log *logger.Logger) DriverService {
	return &driverService{
		driverRepo: driverRepo,
		logger:     log,
	}
}

func (s *driverService) Register(ctx context.Context, userID primitive.ObjectID, name, phone string, vehicle models.VehicleProfile) (*models.Driver, error) {
	existing, err := s.driverRepo.GetByUserID(ctx, userID)
	if err == nil {
		return existing, fmt.Errorf("driver profile already exists for this user")
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	driver := &models.Driver{
		UserID:  userID,
		Name:    name,
		Phone:   phone,
		Status:  models.DriverApprovalPending,
		Vehicle: vehicle,
	}

	if err := s.driverRepo.Create(ctx, driver); err != nil {
		return nil, err
	}

	s.logger.WithDriverID(driver.ID).Info("driver registered, pending approval")

	return driver, nil
}

func (s *driverService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error) {
	return s.driverRepo.GetByID(ctx, id)
}

func (s *driverService) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error) {
	return s.driverRepo.GetByUserID(ctx, userID)
}

func (s *driverService) UpdateVehicle(ctx context.Context, id primitive.ObjectID, vehicle models.VehicleProfile) error {
	if !vehicle.Complete() {
		return ErrIncompleteProfile
	}

	return s.driverRepo.Update(ctx, id, map[string]interface{}{
		"vehicle": vehicle,
	})
}

func (s *driverService) SetApproval(ctx context.Context, id primitive.ObjectID, status models.DriverApprovalStatus) error {
	switch status {
	case models.DriverApprovalApproved, models.DriverApprovalRejected, models.DriverApprovalPending:
	default:
		return fmt.Errorf("unknown approval status %q", status)
	}

	if err := s.driverRepo.Update(ctx, id, map[string]interface{}{
		"status": status,
	}); err != nil {
		return err
	}

	s.logger.WithDriverID(id).WithField("status", string(status)).Info("driver approval updated")

	return nil
}
