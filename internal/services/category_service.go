package services

import (
	"context"
	"fmt"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CategoryService is the admin surface for vehicle category templates.
type CategoryService interface {
	Create(ctx context.Context, category *models.VehicleCategory) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.VehicleCategory, error)
	List(ctx context.Context, activeOnly bool) ([]*models.VehicleCategory, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type categoryService struct {
	categoryRepo interfaces.CategoryRepository
	logger       *logger.Logger
}

func NewCategoryService(categoryRepo interfaces.CategoryRepository, log *logger.Logger) CategoryService {
	return &categoryService{
		categoryRepo: categoryRepo,
		logger:       log,
	}
}

func (s *categoryService) Create(ctx context.Context, category *models.VehicleCategory) error {
	if category.Currency == "" {
		category.Currency = "USD"
	}
	if category.DynamicPricing.RainMultiplier == 0 {
		category.DynamicPricing.RainMultiplier = 1.0
	}
	if category.DynamicPricing.PeakHoursMultiplier == 0 {
		category.DynamicPricing.PeakHoursMultiplier = 1.0
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return err
	}

	s.logger.WithField("category", category.Name).Info("vehicle category created")

	return nil
}

func (s *categoryService) Get(ctx context.Context, id primitive.ObjectID) (*models.VehicleCategory, error) {
	return s.categoryRepo.GetByID(ctx, id)
}

func (s *categoryService) List(ctx context.Context, activeOnly bool) ([]*models.VehicleCategory, error) {
	return s.categoryRepo.List(ctx, activeOnly)
}

func (s *categoryService) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return fmt.Errorf("no category fields to update")
	}

	// Rides in flight keep their snapshot; an edit only affects rides
	// created after it.
	if err := s.categoryRepo.Update(ctx, id, updates); err != nil {
		return err
	}

	s.logger.WithField("category_id", id.Hex()).Info("vehicle category updated")

	return nil
}

func (s *categoryService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.WithField("category_id", id.Hex()).Info("vehicle category deleted")

	return nil
}
