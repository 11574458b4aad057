package service

import (
	"context"
	"time"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

// SessionService drives the per-lane check-in state machine shared by one
// kiosk/register pair.
type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest) (*entity.LaneSessionView, error)
	Current(ctx context.Context, lane string) (*entity.LaneSessionView, error)
	Advance(ctx context.Context, req *AdvanceSessionRequest) (*entity.LaneSessionView, error)
	Highlight(ctx context.Context, req *HighlightRequest) error
	KioskAck(ctx context.Context, lane string) (*entity.LaneSessionView, error)
	Reset(ctx context.Context, lane string) (*entity.LaneSessionView, error)
	Cancel(ctx context.Context, lane string) (*entity.LaneSessionView, error)
}

// WaitlistService owns waitlist entries and is the only writer of the
// entry-to-resource reservation linkage.
type WaitlistService interface {
	Create(ctx context.Context, req *CreateEntryRequest) (*entity.WaitlistEntry, error)
	List(ctx context.Context, statuses []entity.WaitlistStatus) ([]*entity.WaitlistEntryView, error)
	Offer(ctx context.Context, req *OfferRequest) (*OfferResult, error)
	Offerable(ctx context.Context, tier entity.ResourceTier) ([]*entity.Resource, error)
	Cancel(ctx context.Context, entryID int64, actor string) (*entity.WaitlistEntry, error)
	Complete(ctx context.Context, entryID int64, actor string) (*entity.WaitlistEntry, error)
}

// ResourceService owns the housekeeping lifecycle of rooms and lockers.
type ResourceService interface {
	List(ctx context.Context, tier *entity.ResourceTier, status *entity.ResourceStatus) ([]*entity.Resource, error)
	SetStatus(ctx context.Context, id int64, status entity.ResourceStatus) (*entity.Resource, error)
	AssignOccupant(ctx context.Context, id, customerID int64) (*entity.Resource, error)
	ReleaseOccupant(ctx context.Context, id int64) (*entity.Resource, error)
}

// ReauthService is the step-up re-authentication gate: short-lived
// single-use challenges, and a multi-use freshness window consumed by
// administrative mutations until it lapses.
type ReauthService interface {
	Challenge(ctx context.Context, session *entity.StaffSession) (*ChallengeResult, error)
	Verify(ctx context.Context, session *entity.StaffSession, challengeID, pin string) (time.Time, error)
	Check(ctx context.Context, token string) error
}

type CustomerService interface {
	Get(ctx context.Context, id int64) (*entity.Customer, error)
	Update(ctx context.Context, id int64, req *UpdateCustomerRequest, actor string) (*entity.Customer, error)
}

// StaffSessionReader resolves a bearer token into the staff identity the
// external auth system stored. Implemented by the Redis auth store.
type StaffSessionReader interface {
	StaffSession(ctx context.Context, token string) (*entity.StaffSession, error)
}

// StepUpStore is the durable side of the re-auth gate.
type StepUpStore interface {
	StaffSessionReader
	PutChallenge(ctx context.Context, id, owner string, ttl time.Duration) error
	TakeChallenge(ctx context.Context, id string) (string, error)
	GrantReauth(ctx context.Context, token string, until time.Time) error
	ReauthDeadline(ctx context.Context, token string) (time.Time, bool, error)
}
