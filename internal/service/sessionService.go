package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/broadcast"
	repository "github.com/joshuakessell/club-ops-deploy-sub008/internal/database/postgres"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

type StartSessionRequest struct {
	Lane        string               `json:"-"`
	StaffID     int64                `json:"-"`
	StaffName   string               `json:"-"`
	DesiredTier *entity.ResourceTier `json:"desired_tier,omitempty"`
	BackupTier  *entity.ResourceTier `json:"backup_tier,omitempty"`
}

type AdvanceSessionRequest struct {
	Lane            string               `json:"-"`
	Status          entity.SessionStatus `json:"status" binding:"required"`
	CustomerID      *int64               `json:"customer_id,omitempty"`
	DesiredTier     *entity.ResourceTier `json:"desired_tier,omitempty"`
	BackupTier      *entity.ResourceTier `json:"backup_tier,omitempty"`
	ResourceID      *int64               `json:"resource_id,omitempty"`
	PriceQuoteCents *int64               `json:"price_quote_cents,omitempty"`
	PaymentRef      *string              `json:"payment_ref,omitempty"`
	ConfirmLocked   *bool                `json:"confirm_locked,omitempty"`
}

type HighlightRequest struct {
	Lane      string `json:"-"`
	Step      string `json:"step" binding:"required,max=32"`
	Option    string `json:"option" binding:"required,max=64"`
	SessionID *int64 `json:"session_id,omitempty"`
}

type sessionService struct {
	sessionRepo repository.SessionRepository
	publisher   broadcast.Publisher
}

func NewSessionService(sessionRepo repository.SessionRepository, publisher broadcast.Publisher) SessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		publisher:   publisher,
	}
}

// publishSession pushes the committed snapshot to the lane topic. The hub
// is only ever handed state that is already durable, so any terminal that
// receives the event can re-fetch consistent state.
func (s *sessionService) publishSession(view *entity.LaneSessionView) {
	s.publisher.Publish(entity.NewSessionEvent(view), entity.TopicLane(view.Lane))
}

func (s *sessionService) publishRegister(view *entity.LaneSessionView, staffName *string) {
	s.publisher.Publish(
		entity.NewRegisterSessionEvent(view.Lane, view.Status, staffName),
		entity.GlobalTopic(entity.EventRegisterSessionUpdated),
	)
}

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest) (*entity.LaneSessionView, error) {
	if req.DesiredTier != nil && !entity.ValidResourceTier(*req.DesiredTier) {
		return nil, entity.ErrInvalidInput
	}
	if req.BackupTier != nil && !entity.ValidResourceTier(*req.BackupTier) {
		return nil, entity.ErrInvalidInput
	}

	view, err := s.sessionRepo.Create(ctx, req.Lane, req.StaffID, req.DesiredTier, req.BackupTier)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"lane":     req.Lane,
		"session":  view.ID,
		"staff_id": req.StaffID,
	}).Info("Lane session started")

	s.publishSession(view)
	s.publishRegister(view, &req.StaffName)
	return view, nil
}

func (s *sessionService) Current(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	view, err := s.sessionRepo.Current(ctx, lane)
	if err != nil {
		return nil, err
	}
	if view.Status == entity.SessionStatusCancelled {
		return nil, entity.ErrSessionNotFound
	}
	return view, nil
}

func (s *sessionService) Advance(ctx context.Context, req *AdvanceSessionRequest) (*entity.LaneSessionView, error) {
	if !entity.ValidSessionStatus(req.Status) {
		return nil, fmt.Errorf("%w: unknown session status %q", entity.ErrInvalidInput, req.Status)
	}

	view, err := s.sessionRepo.Advance(ctx, req.Lane, req.Status, repository.SessionPatch{
		CustomerID:      req.CustomerID,
		DesiredTier:     req.DesiredTier,
		BackupTier:      req.BackupTier,
		ResourceID:      req.ResourceID,
		PriceQuoteCents: req.PriceQuoteCents,
		PaymentRef:      req.PaymentRef,
		ConfirmLocked:   req.ConfirmLocked,
	})
	if err != nil {
		return nil, err
	}

	s.publishSession(view)
	if view.Status.Terminal() {
		s.publishRegister(view, nil)
	}
	return view, nil
}

// Highlight records no durable state: it only broadcasts the employee's
// pending selection to the lane so the kiosk can preview it.
func (s *sessionService) Highlight(ctx context.Context, req *HighlightRequest) error {
	view, err := s.Current(ctx, req.Lane)
	if err != nil {
		return err
	}

	sessionID := req.SessionID
	if sessionID == nil {
		sessionID = &view.ID
	}

	s.publisher.Publish(
		entity.NewHighlightEvent(req.Lane, req.Step, req.Option, sessionID),
		entity.TopicLane(req.Lane),
	)
	return nil
}

func (s *sessionService) KioskAck(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	view, err := s.sessionRepo.KioskAck(ctx, lane)
	if err != nil {
		return nil, err
	}

	s.publishSession(view)
	return view, nil
}

func (s *sessionService) Reset(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	view, err := s.sessionRepo.Reset(ctx, lane)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"lane":    lane,
		"session": view.ID,
	}).Info("Lane session reset to completed")

	s.publishSession(view)
	s.publishRegister(view, nil)
	return view, nil
}

func (s *sessionService) Cancel(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	view, err := s.sessionRepo.Cancel(ctx, lane)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"lane":    lane,
		"session": view.ID,
	}).Info("Lane session cancelled")

	s.publishSession(view)
	s.publishRegister(view, nil)
	return view, nil
}
