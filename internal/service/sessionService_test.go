package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repository "github.com/joshuakessell/club-ops-deploy-sub008/internal/database/postgres"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

// recordingPublisher intercepts what a service publishes, in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	event  entity.Event
	topics []string
}

func (p *recordingPublisher) Publish(event entity.Event, topics ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{event: event, topics: topics})
}

func (p *recordingPublisher) byType(t entity.EventType) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.event.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// fakeSessionRepo mirrors the transactional contract of the Postgres
// session repository in memory.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string][]*entity.LaneSession
	nextID   int64
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string][]*entity.LaneSession)}
}

func (r *fakeSessionRepo) latest(lane string) *entity.LaneSession {
	rows := r.sessions[lane]
	if len(rows) == 0 {
		return nil
	}
	return rows[len(rows)-1]
}

func view(s *entity.LaneSession) *entity.LaneSessionView {
	copied := *s
	return &entity.LaneSessionView{LaneSession: copied}
}

func (r *fakeSessionRepo) Create(ctx context.Context, lane string, staffID int64, desired, backup *entity.ResourceTier) (*entity.LaneSessionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur := r.latest(lane); cur != nil && !cur.Status.Terminal() {
		return nil, entity.ErrSessionActive
	}

	r.nextID++
	now := time.Now()
	s := &entity.LaneSession{
		ID:          r.nextID,
		Lane:        lane,
		Status:      entity.SessionStatusActive,
		StaffID:     &staffID,
		DesiredTier: desired,
		BackupTier:  backup,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.sessions[lane] = append(r.sessions[lane], s)
	return view(s), nil
}

func (r *fakeSessionRepo) Current(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.latest(lane)
	if cur == nil {
		return nil, entity.ErrSessionNotFound
	}
	return view(cur), nil
}

func (r *fakeSessionRepo) current(lane string) (*entity.LaneSession, error) {
	cur := r.latest(lane)
	if cur == nil || cur.Status == entity.SessionStatusCancelled {
		return nil, entity.ErrSessionNotFound
	}
	return cur, nil
}

func (r *fakeSessionRepo) Advance(ctx context.Context, lane string, to entity.SessionStatus, patch repository.SessionPatch) (*entity.LaneSessionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.current(lane)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransition(cur.Status, to) {
		return nil, entity.ErrBadTransition
	}

	cur.Status = to
	if patch.CustomerID != nil {
		cur.CustomerID = patch.CustomerID
	}
	if patch.ResourceID != nil {
		cur.ResourceID = patch.ResourceID
	}
	if patch.PriceQuoteCents != nil {
		cur.PriceQuoteCents = patch.PriceQuoteCents
	}
	if patch.PaymentRef != nil {
		cur.PaymentRef = patch.PaymentRef
	}
	if patch.ConfirmLocked != nil {
		cur.ConfirmLocked = *patch.ConfirmLocked
	}
	cur.UpdatedAt = time.Now()
	return view(cur), nil
}

func (r *fakeSessionRepo) KioskAck(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.current(lane)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	cur.KioskAckedAt = &now
	cur.UpdatedAt = now
	return view(cur), nil
}

func (r *fakeSessionRepo) Reset(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.current(lane)
	if err != nil {
		return nil, err
	}
	cur.Status = entity.SessionStatusCompleted
	cur.CustomerID = nil
	cur.DesiredTier = nil
	cur.BackupTier = nil
	cur.ResourceID = nil
	cur.PriceQuoteCents = nil
	cur.PaymentRef = nil
	cur.ConfirmLocked = false
	cur.KioskAckedAt = nil
	cur.UpdatedAt = time.Now()
	return view(cur), nil
}

func (r *fakeSessionRepo) Cancel(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.current(lane)
	if err != nil {
		return nil, err
	}
	if cur.Status == entity.SessionStatusCompleted {
		return nil, entity.ErrBadTransition
	}
	cur.Status = entity.SessionStatusCancelled
	cur.UpdatedAt = time.Now()
	return view(cur), nil
}

func newSessionFixture() (*fakeSessionRepo, *recordingPublisher, SessionService) {
	repo := newFakeSessionRepo()
	pub := &recordingPublisher{}
	return repo, pub, NewSessionService(repo, pub)
}

func startSession(t *testing.T, svc SessionService, lane string) *entity.LaneSessionView {
	t.Helper()
	v, err := svc.Start(context.Background(), &StartSessionRequest{Lane: lane, StaffID: 9, StaffName: "dana"})
	require.NoError(t, err)
	return v
}

func TestSessionStart(t *testing.T) {
	_, pub, svc := newSessionFixture()

	v := startSession(t, svc, "1")
	assert.Equal(t, entity.SessionStatusActive, v.Status)

	// One session event on the lane topic, one register summary on the
	// global topic.
	sessionEvents := pub.byType(entity.EventSessionUpdated)
	require.Len(t, sessionEvents, 1)
	assert.Equal(t, []string{entity.TopicLane("1")}, sessionEvents[0].topics)

	registerEvents := pub.byType(entity.EventRegisterSessionUpdated)
	require.Len(t, registerEvents, 1)

	// A second start on the same lane conflicts while the first is live.
	_, err := svc.Start(context.Background(), &StartSessionRequest{Lane: "1", StaffID: 9})
	assert.ErrorIs(t, err, entity.ErrSessionActive)

	// Another lane is unaffected.
	startSession(t, svc, "2")
}

func TestSessionResetIdempotent(t *testing.T) {
	repo, pub, svc := newSessionFixture()

	startSession(t, svc, "1")

	customerID := int64(42)
	resourceID := int64(7)
	_, err := svc.Advance(context.Background(), &AdvanceSessionRequest{
		Lane:       "1",
		Status:     entity.SessionStatusAwaitingCustomer,
		CustomerID: &customerID,
		ResourceID: &resourceID,
	})
	require.NoError(t, err)

	first, err := svc.Reset(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusCompleted, first.Status)
	assert.Nil(t, first.CustomerID)
	assert.Nil(t, first.ResourceID)
	assert.Nil(t, first.PriceQuoteCents)
	assert.Nil(t, first.PaymentRef)
	assert.Nil(t, first.KioskAckedAt)
	assert.False(t, first.ConfirmLocked)

	// A second reset converges to the identical terminal snapshot.
	second, err := svc.Reset(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
	assert.Nil(t, second.CustomerID)
	assert.Nil(t, second.ResourceID)

	// Both resets committed and broadcast.
	assert.GreaterOrEqual(t, len(pub.byType(entity.EventSessionUpdated)), 2)
	_ = repo
}

func TestSessionResetNotFound(t *testing.T) {
	_, _, svc := newSessionFixture()

	_, err := svc.Reset(context.Background(), "9")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestSessionResetAfterCancelNotFound(t *testing.T) {
	_, _, svc := newSessionFixture()

	startSession(t, svc, "1")
	_, err := svc.Cancel(context.Background(), "1")
	require.NoError(t, err)

	_, err = svc.Reset(context.Background(), "1")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestSessionKioskAckKeepsStatus(t *testing.T) {
	_, pub, svc := newSessionFixture()

	startSession(t, svc, "1")

	customerID := int64(5)
	_, err := svc.Advance(context.Background(), &AdvanceSessionRequest{
		Lane:       "1",
		Status:     entity.SessionStatusAwaitingCustomer,
		CustomerID: &customerID,
	})
	require.NoError(t, err)
	pub.reset()

	v, err := svc.KioskAck(context.Background(), "1")
	require.NoError(t, err)

	// The acknowledgement stamps a timestamp and nothing else: the
	// register still owns the live transaction.
	require.NotNil(t, v.KioskAckedAt)
	assert.Equal(t, entity.SessionStatusAwaitingCustomer, v.Status)
	require.NotNil(t, v.CustomerID)
	assert.Equal(t, customerID, *v.CustomerID)

	events := pub.byType(entity.EventSessionUpdated)
	require.Len(t, events, 1)
	assert.Equal(t, []string{entity.TopicLane("1")}, events[0].topics)
}

func TestSessionAdvanceIllegalTransition(t *testing.T) {
	_, _, svc := newSessionFixture()

	startSession(t, svc, "1")

	// Skipping straight to payment is not a legal forward step.
	_, err := svc.Advance(context.Background(), &AdvanceSessionRequest{
		Lane:   "1",
		Status: entity.SessionStatusAwaitingPayment,
	})
	assert.ErrorIs(t, err, entity.ErrBadTransition)
}

func TestSessionHighlight(t *testing.T) {
	_, pub, svc := newSessionFixture()

	startSession(t, svc, "1")
	pub.reset()

	err := svc.Highlight(context.Background(), &HighlightRequest{
		Lane:   "1",
		Step:   "rental_type",
		Option: "DOUBLE",
	})
	require.NoError(t, err)

	events := pub.byType(entity.EventCheckinOptionHighlight)
	require.Len(t, events, 1)
	assert.Equal(t, []string{entity.TopicLane("1")}, events[0].topics)
	require.NotNil(t, events[0].event.Highlight)
	assert.Equal(t, "DOUBLE", events[0].event.Highlight.Option)
	require.NotNil(t, events[0].event.Highlight.SessionID)
}

func TestSessionHighlightNotFound(t *testing.T) {
	_, pub, svc := newSessionFixture()

	err := svc.Highlight(context.Background(), &HighlightRequest{Lane: "1", Step: "s", Option: "o"})
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
	assert.Empty(t, pub.byType(entity.EventCheckinOptionHighlight))
}
