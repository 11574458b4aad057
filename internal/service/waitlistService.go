package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/broadcast"
	repository "github.com/joshuakessell/club-ops-deploy-sub008/internal/database/postgres"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/pkg/kafka"
)

type CreateEntryRequest struct {
	VisitID     int64                `json:"visit_id" binding:"required"`
	DesiredTier entity.ResourceTier  `json:"desired_tier" binding:"required"`
	BackupTier  *entity.ResourceTier `json:"backup_tier,omitempty"`
}

type OfferRequest struct {
	EntryID    int64  `json:"-"`
	ResourceID int64  `json:"room_id" binding:"required"`
	Actor      string `json:"-"`
}

type OfferResult struct {
	Entry          *entity.WaitlistEntry `json:"entry"`
	ResourceNumber string                `json:"resource_number"`
}

type waitlistService struct {
	waitlistRepo repository.WaitlistRepository
	resourceRepo repository.ResourceRepository
	publisher    broadcast.Publisher
	audit        kafka.Producer
}

func NewWaitlistService(
	waitlistRepo repository.WaitlistRepository,
	resourceRepo repository.ResourceRepository,
	publisher broadcast.Publisher,
	audit kafka.Producer,
) WaitlistService {
	return &waitlistService{
		waitlistRepo: waitlistRepo,
		resourceRepo: resourceRepo,
		publisher:    publisher,
		audit:        audit,
	}
}

func (s *waitlistService) Create(ctx context.Context, req *CreateEntryRequest) (*entity.WaitlistEntry, error) {
	if !entity.ValidResourceTier(req.DesiredTier) {
		return nil, fmt.Errorf("%w: unknown tier %q", entity.ErrInvalidInput, req.DesiredTier)
	}
	if req.BackupTier != nil && !entity.ValidResourceTier(*req.BackupTier) {
		return nil, fmt.Errorf("%w: unknown tier %q", entity.ErrInvalidInput, *req.BackupTier)
	}

	entry := &entity.WaitlistEntry{
		VisitID:     req.VisitID,
		DesiredTier: req.DesiredTier,
		BackupTier:  req.BackupTier,
	}
	if err := s.waitlistRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"entry": entry.ID,
		"visit": entry.VisitID,
		"tier":  entry.DesiredTier,
	}).Info("Waitlist entry created")

	s.publisher.Publish(
		entity.NewWaitlistEvent(*entry, nil),
		entity.GlobalTopic(entity.EventWaitlistUpdated),
	)
	return entry, nil
}

func (s *waitlistService) List(ctx context.Context, statuses []entity.WaitlistStatus) ([]*entity.WaitlistEntryView, error) {
	if len(statuses) == 0 {
		statuses = []entity.WaitlistStatus{entity.WaitlistStatusActive, entity.WaitlistStatusOffered}
	}
	return s.waitlistRepo.List(ctx, statuses)
}

// Offer binds one waitlist entry to one physical resource, exclusively.
// The repository runs the binding at serializable isolation; the second of
// two concurrent offers for the same resource gets ErrResourceConflict and
// must re-query what is offerable instead of retrying the stale choice.
func (s *waitlistService) Offer(ctx context.Context, req *OfferRequest) (*OfferResult, error) {
	entry, number, err := s.waitlistRepo.Offer(ctx, req.EntryID, req.ResourceID)

	outcome := "success"
	if err != nil {
		outcome = "error"
		if errors.Is(err, entity.ErrResourceConflict) {
			outcome = "conflict"
		}
	}
	s.recordAudit(ctx, req.Actor, "waitlist.offer",
		fmt.Sprintf("entry=%d resource=%d", req.EntryID, req.ResourceID), outcome)

	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"entry":    entry.ID,
		"resource": req.ResourceID,
		"number":   number,
	}).Info("Waitlist entry offered resource")

	s.publisher.Publish(
		entity.NewWaitlistEvent(*entry, &number),
		entity.GlobalTopic(entity.EventWaitlistUpdated),
	)

	return &OfferResult{Entry: entry, ResourceNumber: number}, nil
}

func (s *waitlistService) Offerable(ctx context.Context, tier entity.ResourceTier) ([]*entity.Resource, error) {
	if !entity.ValidResourceTier(tier) {
		return nil, fmt.Errorf("%w: unknown tier %q", entity.ErrInvalidInput, tier)
	}
	return s.waitlistRepo.Offerable(ctx, tier)
}

func (s *waitlistService) Cancel(ctx context.Context, entryID int64, actor string) (*entity.WaitlistEntry, error) {
	return s.finalize(ctx, entryID, entity.WaitlistStatusCancelled, actor)
}

func (s *waitlistService) Complete(ctx context.Context, entryID int64, actor string) (*entity.WaitlistEntry, error) {
	return s.finalize(ctx, entryID, entity.WaitlistStatusCompleted, actor)
}

func (s *waitlistService) finalize(ctx context.Context, entryID int64, status entity.WaitlistStatus, actor string) (*entity.WaitlistEntry, error) {
	entry, released, err := s.waitlistRepo.Finalize(ctx, entryID, status)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "waitlist."+string(status), fmt.Sprintf("entry=%d", entryID), "success")

	s.publisher.Publish(
		entity.NewWaitlistEvent(*entry, nil),
		entity.GlobalTopic(entity.EventWaitlistUpdated),
	)

	// Releasing the binding makes the resource offerable again; tell every
	// inventory board. The resource's own status lifecycle is untouched.
	if released != nil {
		if resource, err := s.resourceRepo.GetByID(ctx, *released); err == nil {
			s.publisher.Publish(
				entity.NewInventoryEvent(*resource),
				entity.GlobalTopic(entity.EventInventoryUpdated),
			)
		} else {
			logrus.Errorf("Failed to load released resource %d: %v", *released, err)
		}
	}

	return entry, nil
}

func (s *waitlistService) recordAudit(ctx context.Context, actor, action, target, outcome string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, kafka.AuditRecord{
		Actor:   actor,
		Action:  action,
		Target:  target,
		Outcome: outcome,
		At:      time.Now().UTC(),
	})
	if err != nil {
		logrus.Errorf("Failed to record audit entry: %v", err)
	}
}
