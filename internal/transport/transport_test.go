package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/broadcast"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/transport/middleware"
)

const (
	testStaffToken  = "staff-token"
	testKioskSecret = "kiosk-secret"
)

type stubSessions struct{}

func (stubSessions) StaffSession(ctx context.Context, token string) (*entity.StaffSession, error) {
	if token != testStaffToken {
		return nil, entity.ErrUnauthenticated
	}
	return &entity.StaffSession{Token: token, StaffID: 7, Name: "dana", Role: "manager"}, nil
}

// stubSessionService returns canned results per method.
type stubSessionService struct {
	view *entity.LaneSessionView
	err  error
}

func (s *stubSessionService) Start(ctx context.Context, req *service.StartSessionRequest) (*entity.LaneSessionView, error) {
	return s.view, s.err
}

func (s *stubSessionService) Current(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	return s.view, s.err
}

func (s *stubSessionService) Advance(ctx context.Context, req *service.AdvanceSessionRequest) (*entity.LaneSessionView, error) {
	return s.view, s.err
}

func (s *stubSessionService) Highlight(ctx context.Context, req *service.HighlightRequest) error {
	return s.err
}

func (s *stubSessionService) KioskAck(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	return s.view, s.err
}

func (s *stubSessionService) Reset(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	return s.view, s.err
}

func (s *stubSessionService) Cancel(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	return s.view, s.err
}

type stubWaitlistService struct {
	entry  *entity.WaitlistEntry
	result *service.OfferResult
	err    error

	lastOffer *service.OfferRequest
}

func (s *stubWaitlistService) Create(ctx context.Context, req *service.CreateEntryRequest) (*entity.WaitlistEntry, error) {
	return s.entry, s.err
}

func (s *stubWaitlistService) List(ctx context.Context, statuses []entity.WaitlistStatus) ([]*entity.WaitlistEntryView, error) {
	return nil, s.err
}

func (s *stubWaitlistService) Offer(ctx context.Context, req *service.OfferRequest) (*service.OfferResult, error) {
	s.lastOffer = req
	return s.result, s.err
}

func (s *stubWaitlistService) Offerable(ctx context.Context, tier entity.ResourceTier) ([]*entity.Resource, error) {
	return nil, s.err
}

func (s *stubWaitlistService) Cancel(ctx context.Context, entryID int64, actor string) (*entity.WaitlistEntry, error) {
	return s.entry, s.err
}

func (s *stubWaitlistService) Complete(ctx context.Context, entryID int64, actor string) (*entity.WaitlistEntry, error) {
	return s.entry, s.err
}

type stubResourceService struct{}

func (stubResourceService) List(ctx context.Context, tier *entity.ResourceTier, status *entity.ResourceStatus) ([]*entity.Resource, error) {
	return nil, nil
}

func (stubResourceService) SetStatus(ctx context.Context, id int64, status entity.ResourceStatus) (*entity.Resource, error) {
	return nil, entity.ErrResourceNotFound
}

func (stubResourceService) AssignOccupant(ctx context.Context, id, customerID int64) (*entity.Resource, error) {
	return nil, entity.ErrResourceNotFound
}

func (stubResourceService) ReleaseOccupant(ctx context.Context, id int64) (*entity.Resource, error) {
	return nil, entity.ErrResourceNotFound
}

type stubCustomerService struct {
	customer *entity.Customer
	err      error
}

func (s *stubCustomerService) Get(ctx context.Context, id int64) (*entity.Customer, error) {
	return s.customer, s.err
}

func (s *stubCustomerService) Update(ctx context.Context, id int64, req *service.UpdateCustomerRequest, actor string) (*entity.Customer, error) {
	return s.customer, s.err
}

type stubReauthService struct {
	checkErr  error
	verifyErr error
	until     time.Time
}

func (s *stubReauthService) Challenge(ctx context.Context, session *entity.StaffSession) (*service.ChallengeResult, error) {
	return &service.ChallengeResult{ChallengeID: "ch-1", ExpiresAt: time.Now().Add(2 * time.Minute)}, nil
}

func (s *stubReauthService) Verify(ctx context.Context, session *entity.StaffSession, challengeID, pin string) (time.Time, error) {
	return s.until, s.verifyErr
}

func (s *stubReauthService) Check(ctx context.Context, token string) error {
	return s.checkErr
}

type fixture struct {
	router   *gin.Engine
	session  *stubSessionService
	waitlist *stubWaitlistService
	customer *stubCustomerService
	reauth   *stubReauthService
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)

	f := &fixture{
		session:  &stubSessionService{},
		waitlist: &stubWaitlistService{},
		customer: &stubCustomerService{customer: &entity.Customer{ID: 1, Name: "pat"}},
		reauth:   &stubReauthService{},
	}

	sessions := stubSessions{}
	handlers := Handlers{
		Session:  NewSessionHandler(f.session),
		Waitlist: NewWaitlistHandler(f.waitlist),
		Resource: NewResourceHandler(stubResourceService{}),
		Admin:    NewAdminHandler(f.customer, f.reauth),
		WS:       NewWSHandler(broadcast.NewHub(), sessions, testKioskSecret),
	}
	f.router = InitRoutes(handlers, sessions, f.reauth, testKioskSecret)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func staffHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testStaffToken}
}

func kioskHeader(lane string) map[string]string {
	return map[string]string{"X-Kiosk-Token": middleware.KioskToken(testKioskSecret, lane)}
}

func TestRoutesRequireCredentials(t *testing.T) {
	f := newFixture()

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/lane/1/start"},
		{http.MethodPost, "/api/v1/lane/1/kiosk-ack"},
		{http.MethodGet, "/api/v1/waitlist"},
		{http.MethodGet, "/api/v1/rooms"},
		{http.MethodPatch, "/api/v1/admin/customers/1"},
	} {
		w := f.do(t, route.method, route.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestKioskTokenScopedToKioskRoutes(t *testing.T) {
	f := newFixture()
	f.session.view = &entity.LaneSessionView{LaneSession: entity.LaneSession{ID: 1, Lane: "1", Status: entity.SessionStatusActive}}

	// The lane's own token admits the kiosk acknowledgement.
	w := f.do(t, http.MethodPost, "/api/v1/lane/1/kiosk-ack", nil, kioskHeader("1"))
	assert.Equal(t, http.StatusOK, w.Code)

	// A garbage token is rejected even though staff auth would also be tried.
	w = f.do(t, http.MethodPost, "/api/v1/lane/1/kiosk-ack", nil, map[string]string{"X-Kiosk-Token": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Staff-only routes ignore the kiosk token entirely.
	w = f.do(t, http.MethodPost, "/api/v1/lane/1/reset", nil, kioskHeader("1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestKioskTokenScopedToOwnLane(t *testing.T) {
	f := newFixture()
	f.session.view = &entity.LaneSessionView{LaneSession: entity.LaneSession{ID: 1, Lane: "2", Status: entity.SessionStatusActive}}

	// Lane 1's token opens neither the acknowledgement nor the session
	// read on lane 2.
	w := f.do(t, http.MethodPost, "/api/v1/lane/2/kiosk-ack", nil, kioskHeader("1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/lane/2/session", nil, kioskHeader("1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/lane/2/session", nil, kioskHeader("2"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestKioskSubscriptionPinnedToLane(t *testing.T) {
	// Whatever a kiosk connection asks for, it only ever receives its own
	// lane's topic.
	msg := subscribeMessage{
		Type:   "subscribe",
		Events: []string{"SESSION_UPDATED", "CHECKIN_OPTION_HIGHLIGHTED", "WAITLIST_UPDATED", "INVENTORY_UPDATED"},
		Lane:   "2",
	}

	assert.Equal(t, []string{entity.TopicLane("1")}, topicsFor(msg, "1"))

	// Staff connections keep the full mapping.
	staffTopics := topicsFor(msg, "")
	assert.Contains(t, staffTopics, entity.TopicLane("2"))
	assert.Contains(t, staffTopics, entity.GlobalTopic(entity.EventWaitlistUpdated))
}

func TestSessionErrorMapping(t *testing.T) {
	f := newFixture()

	f.session.err = entity.ErrSessionNotFound
	w := f.do(t, http.MethodPost, "/api/v1/lane/9/reset", nil, staffHeader())
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.session.err = entity.ErrSessionActive
	w = f.do(t, http.MethodPost, "/api/v1/lane/1/start", nil, staffHeader())
	assert.Equal(t, http.StatusConflict, w.Code)

	f.session.err = entity.ErrBadTransition
	w = f.do(t, http.MethodPost, "/api/v1/lane/1/advance",
		map[string]string{"status": "AWAITING_PAYMENT"}, staffHeader())
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOfferConflictReturns409(t *testing.T) {
	f := newFixture()
	f.waitlist.err = entity.ErrResourceConflict

	w := f.do(t, http.MethodPost, "/api/v1/waitlist/5/offer",
		map[string]int64{"room_id": 216}, staffHeader())
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NotNil(t, f.waitlist.lastOffer)
	assert.Equal(t, int64(5), f.waitlist.lastOffer.EntryID)
	assert.Equal(t, int64(216), f.waitlist.lastOffer.ResourceID)
	assert.Equal(t, "dana", f.waitlist.lastOffer.Actor)
}

func TestOfferSuccess(t *testing.T) {
	f := newFixture()
	resourceID := int64(216)
	f.waitlist.result = &service.OfferResult{
		Entry: &entity.WaitlistEntry{
			ID: 5, Status: entity.WaitlistStatusOffered, ResourceID: &resourceID,
		},
		ResourceNumber: "216",
	}

	w := f.do(t, http.MethodPost, "/api/v1/waitlist/5/offer",
		map[string]int64{"room_id": 216}, staffHeader())
	require.Equal(t, http.StatusOK, w.Code)

	var result service.OfferResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "216", result.ResourceNumber)
}

func TestReauthGateCodes(t *testing.T) {
	f := newFixture()
	patch := map[string]interface{}{"balance_cents": 500}

	f.reauth.checkErr = entity.ErrReauthRequired
	w := f.do(t, http.MethodPatch, "/api/v1/admin/customers/1", patch, staffHeader())
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "REAUTH_REQUIRED")

	f.reauth.checkErr = entity.ErrReauthExpired
	w = f.do(t, http.MethodPatch, "/api/v1/admin/customers/1", patch, staffHeader())
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "REAUTH_EXPIRED")

	f.reauth.checkErr = nil
	w = f.do(t, http.MethodPatch, "/api/v1/admin/customers/1", patch, staffHeader())
	assert.Equal(t, http.StatusOK, w.Code)

	// Reads are not gated.
	f.reauth.checkErr = entity.ErrReauthRequired
	w = f.do(t, http.MethodGet, "/api/v1/admin/customers/1", nil, staffHeader())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStepUpVerify(t *testing.T) {
	f := newFixture()

	f.reauth.verifyErr = entity.ErrBadPin
	w := f.do(t, http.MethodPost, "/api/v1/auth/step-up/verify",
		map[string]string{"challenge_id": "ch-1", "pin": "0000"}, staffHeader())
	assert.Equal(t, http.StatusForbidden, w.Code)

	f.reauth.verifyErr = nil
	f.reauth.until = time.Date(2026, 3, 14, 12, 5, 0, 0, time.UTC)
	w = f.do(t, http.MethodPost, "/api/v1/auth/step-up/verify",
		map[string]string{"challenge_id": "ch-1", "pin": "4311"}, staffHeader())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reauth_ok_until")

	// A short PIN never reaches the service.
	w = f.do(t, http.MethodPost, "/api/v1/auth/step-up/verify",
		map[string]string{"challenge_id": "ch-1", "pin": "12"}, staffHeader())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
