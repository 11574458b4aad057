package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/broadcast"
	repository "github.com/joshuakessell/club-ops-deploy-sub008/internal/database/postgres"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

type resourceService struct {
	resourceRepo repository.ResourceRepository
	publisher    broadcast.Publisher
}

func NewResourceService(resourceRepo repository.ResourceRepository, publisher broadcast.Publisher) ResourceService {
	return &resourceService{
		resourceRepo: resourceRepo,
		publisher:    publisher,
	}
}

func (s *resourceService) List(ctx context.Context, tier *entity.ResourceTier, status *entity.ResourceStatus) ([]*entity.Resource, error) {
	if tier != nil && !entity.ValidResourceTier(*tier) {
		return nil, fmt.Errorf("%w: unknown tier %q", entity.ErrInvalidInput, *tier)
	}
	if status != nil && !entity.ValidResourceStatus(*status) {
		return nil, fmt.Errorf("%w: unknown status %q", entity.ErrInvalidInput, *status)
	}
	return s.resourceRepo.List(ctx, tier, status)
}

func (s *resourceService) SetStatus(ctx context.Context, id int64, status entity.ResourceStatus) (*entity.Resource, error) {
	if !entity.ValidResourceStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", entity.ErrInvalidInput, status)
	}

	resource, err := s.resourceRepo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"resource": resource.ID,
		"number":   resource.Number,
		"status":   resource.Status,
	}).Info("Resource status changed")

	s.publishInventory(resource)
	return resource, nil
}

func (s *resourceService) AssignOccupant(ctx context.Context, id, customerID int64) (*entity.Resource, error) {
	resource, err := s.resourceRepo.AssignOccupant(ctx, id, customerID)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"resource": resource.ID,
		"number":   resource.Number,
		"customer": customerID,
	}).Info("Resource occupied")

	s.publishInventory(resource)
	return resource, nil
}

func (s *resourceService) ReleaseOccupant(ctx context.Context, id int64) (*entity.Resource, error) {
	resource, err := s.resourceRepo.ReleaseOccupant(ctx, id)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"resource": resource.ID,
		"number":   resource.Number,
	}).Info("Resource released")

	s.publishInventory(resource)
	return resource, nil
}

func (s *resourceService) publishInventory(resource *entity.Resource) {
	s.publisher.Publish(
		entity.NewInventoryEvent(*resource),
		entity.GlobalTopic(entity.EventInventoryUpdated),
	)
}
