package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type AssignCleanerRequest struct {
	PropertyID  uuid.UUID
	CleanerID   *uuid.UUID
	Phone       string
	DisplayName string
}

// PropertyService manages which cleaners work a property.
type PropertyService interface {
	AssignCleaner(ctx context.Context, actor models.Actor, req AssignCleanerRequest) (*models.PropertyCleanerAssignment, error)
	ListCleaners(ctx context.Context, actor models.Actor, propertyID uuid.UUID) ([]*models.PropertyCleanerAssignment, error)
}

type propertyService struct {
	guard       GuardService
	cleaners    repositories.CleanerRepository
	assignments repositories.AssignmentRepository
}

func NewPropertyService(guard GuardService, cleaners repositories.CleanerRepository, assignments repositories.AssignmentRepository) PropertyService {
	return &propertyService{guard: guard, cleaners: cleaners, assignments: assignments}
}

// AssignCleaner is idempotent. An unknown phone gets an unverified cleaner row.
func (s *propertyService) AssignCleaner(ctx context.Context, actor models.Actor, req AssignCleanerRequest) (*models.PropertyCleanerAssignment, error) {
	if err := s.requireOwner(ctx, actor, req.PropertyID); err != nil {
		return nil, err
	}

	var cleaner *models.Cleaner
	var err error
	switch {
	case req.CleanerID != nil:
		cleaner, err = s.cleaners.GetByID(ctx, *req.CleanerID)
	case strings.TrimSpace(req.Phone) != "":
		phone, pErr := utils.NormalizePhone(req.Phone)
		if pErr != nil {
			return nil, pErr
		}
		cleaner, err = s.cleaners.CreateIfNotExists(ctx, &models.Cleaner{
			DisplayName: req.DisplayName,
			SMSContact:  models.SMSContact{Phone: &phone},
		})
	default:
		return nil, fmt.Errorf("%w: cleaner id or phone is required", utils.ErrInvalidPayload)
	}
	if err != nil {
		return nil, err
	}
	if cleaner == nil {
		return nil, utils.ErrSubjectNotFound
	}

	if err := s.assignments.Upsert(ctx, req.PropertyID, cleaner.ID); err != nil {
		return nil, err
	}
	return &models.PropertyCleanerAssignment{PropertyID: req.PropertyID, CleanerID: cleaner.ID}, nil
}

func (s *propertyService) ListCleaners(ctx context.Context, actor models.Actor, propertyID uuid.UUID) ([]*models.PropertyCleanerAssignment, error) {
	if err := s.requireOwner(ctx, actor, propertyID); err != nil {
		return nil, err
	}
	return s.assignments.ListByProperty(ctx, propertyID)
}

func (s *propertyService) requireOwner(ctx context.Context, actor models.Actor, propertyID uuid.UUID) error {
	if !actor.IsManager() {
		return utils.ErrForbidden
	}
	d, err := s.guard.AuthorizeProperty(ctx, actor, propertyID)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return utils.ErrForbidden
	}
	return nil
}
