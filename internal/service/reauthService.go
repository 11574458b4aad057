package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

type ChallengeResult struct {
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type reauthService struct {
	store        StepUpStore
	challengeTTL time.Duration
	reauthTTL    time.Duration
	pinHash      string
	now          func() time.Time
}

func NewReauthService(store StepUpStore, challengeTTL, reauthTTL time.Duration, pinHash string) ReauthService {
	return &reauthService{
		store:        store,
		challengeTTL: challengeTTL,
		reauthTTL:    reauthTTL,
		pinHash:      pinHash,
		now:          time.Now,
	}
}

func (s *reauthService) Challenge(ctx context.Context, session *entity.StaffSession) (*ChallengeResult, error) {
	id := uuid.NewString()
	if err := s.store.PutChallenge(ctx, id, session.Token, s.challengeTTL); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"staff_id":  session.StaffID,
		"challenge": id,
	}).Info("Step-up challenge issued")

	return &ChallengeResult{
		ChallengeID: id,
		ExpiresAt:   s.now().Add(s.challengeTTL),
	}, nil
}

// Verify consumes the challenge (single use, whatever the outcome of the
// PIN check) and on success opens the freshness window. The grant itself
// is multi-use: any number of gated actions may ride it until it lapses.
func (s *reauthService) Verify(ctx context.Context, session *entity.StaffSession, challengeID, pin string) (time.Time, error) {
	owner, err := s.store.TakeChallenge(ctx, challengeID)
	if err != nil {
		return time.Time{}, err
	}
	if owner != session.Token {
		return time.Time{}, entity.ErrChallengeNotFound
	}

	sum := sha256.Sum256([]byte(pin))
	digest := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(digest), []byte(s.pinHash)) != 1 {
		logrus.WithField("staff_id", session.StaffID).Warn("Step-up pin rejected")
		return time.Time{}, entity.ErrBadPin
	}

	until := s.now().Add(s.reauthTTL)
	if err := s.store.GrantReauth(ctx, session.Token, until); err != nil {
		return time.Time{}, err
	}

	logrus.WithFields(logrus.Fields{
		"staff_id": session.StaffID,
		"until":    until,
	}).Info("Step-up re-authentication granted")

	return until, nil
}

func (s *reauthService) Check(ctx context.Context, token string) error {
	until, found, err := s.store.ReauthDeadline(ctx, token)
	if err != nil {
		return err
	}
	if !found {
		return entity.ErrReauthRequired
	}
	if s.now().After(until) {
		return entity.ErrReauthExpired
	}
	return nil
}
