package service

import (
	"context"
	"sync"
	"testing"

	"CommunityHub/internal/model"
	"CommunityHub/internal/payment"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"
	"CommunityHub/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeProcessor struct {
	mu        sync.Mutex
	sessions  map[string]payment.CheckoutSession
	requests  []payment.CheckoutRequest
	cancelled []string
	createErr error
	getErr    error
	cancelErr error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sessions: map[string]payment.CheckoutSession{}}
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.requests = append(f.requests, req)
	return "cs_secret_" + req.CommunityID, nil
}

func (f *fakeProcessor) GetCheckoutSession(_ context.Context, id string) (*payment.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, pkg.NewError(pkg.KindNotFound, "retrieve checkout session: not found")
	}
	return &s, nil
}

func (f *fakeProcessor) CancelSubscription(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeProcessor) addSession(id, status, subscriptionID, communityID, userID string) payment.CheckoutSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	md := map[string]string{}
	if communityID != "" {
		md[payment.MetadataCommunityID] = communityID
	}
	if userID != "" {
		md[payment.MetadataUserID] = userID
	}
	s := payment.CheckoutSession{ID: id, PaymentStatus: status, SubscriptionID: subscriptionID, Metadata: md}
	f.sessions[id] = s
	return s
}

type fixture struct {
	db      *gorm.DB
	proc    *fakeProcessor
	metrics *pkg.Metrics
	svc     *MembershipService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	proc := newFakeProcessor()
	metrics := pkg.NewMetrics(prometheus.NewRegistry())
	return &fixture{
		db:      db,
		proc:    proc,
		metrics: metrics,
		svc:     NewMembershipService(db, proc, "", zaptest.NewLogger(t), metrics),
	}
}

func seedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Password: "x", DisplayName: email, Role: model.UserRoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedCommunity(t *testing.T, db *gorm.DB, creatorID, name string, price int64) *model.Community {
	t.Helper()
	c := &model.Community{
		Name:         name,
		CreatorID:    creatorID,
		IsPublic:     true,
		PriceInCents: price,
		Status:       model.CommunityActive,
	}
	require.NoError(t, mysql.NewCommunityRepository(db).Create(context.Background(), c))
	return c
}

func countMemberships(t *testing.T, db *gorm.DB, communityID, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Membership{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).Count(&n).Error)
	return n
}

func countOutbox(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.MembershipOutbox{}).Count(&n).Error)
	return n
}
