package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"CommunityHub/internal/handler"
	"CommunityHub/internal/middleware"
	"CommunityHub/internal/model"
	"CommunityHub/internal/payment"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"
	"CommunityHub/internal/repository/redis"
	"CommunityHub/internal/router"
	"CommunityHub/internal/service"
	"CommunityHub/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_handler_test"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProcessor struct {
	mu        sync.Mutex
	sessions  map[string]payment.CheckoutSession
	cancelled []string
}

func (p *stubProcessor) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (string, error) {
	return "secret_" + req.CommunityID + "_" + req.UserID, nil
}

func (p *stubProcessor) GetCheckoutSession(_ context.Context, id string) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		// 与 StripeProcessor 一致：cause 是支付侧的原始错误
		return nil, pkg.WrapError(pkg.KindNotFound, "retrieve checkout session: not found", &stripe.Error{
			Code:           stripe.ErrorCodeResourceMissing,
			HTTPStatusCode: http.StatusNotFound,
			Msg:            "No such checkout.session: " + id,
			RequestID:      "req_internal_123",
		})
	}
	return &s, nil
}

func (p *stubProcessor) CancelSubscription(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, id)
	return nil
}

func (p *stubProcessor) put(s payment.CheckoutSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s.ID] = s
}

// secretVerifier 与生产一致的签名校验，只是密钥来自测试
type secretVerifier string

func (s secretVerifier) ConstructEvent(payload []byte, signature string) (payment.Event, error) {
	return payment.VerifyEvent(payload, signature, string(s))
}

type env struct {
	db      *gorm.DB
	mr      *miniredis.Miniredis
	proc    *stubProcessor
	issuer  *pkg.TokenIssuer
	tokens  *redis.TokenRepository
	metrics *pkg.Metrics
	engine  *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	rdb, mr := testutil.NewRedis(t)
	log := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	metrics := pkg.NewMetrics(reg)
	issuer := pkg.NewTokenIssuer("access-secret", "refresh-secret")
	tokens := redis.NewTokenRepository(rdb)
	proc := &stubProcessor{sessions: map[string]payment.CheckoutSession{}}

	membershipSvc := service.NewMembershipService(db, proc, "usd", log, metrics)
	engine := router.InitRouter(router.Deps{
		Log:        log,
		Metrics:    metrics,
		Gatherer:   reg,
		Auth:       middleware.NewAuth(issuer, tokens, log),
		User:       handler.NewUserHandler(service.NewUserService(db, tokens, issuer, log), log),
		Community:  handler.NewCommunityHandler(service.NewCommunityService(db), membershipSvc, log),
		Membership: handler.NewMembershipHandler(membershipSvc, log),
		Webhook:    handler.NewWebhookHandler(secretVerifier(webhookSecret), membershipSvc, redis.NewEventRepository(rdb), log, metrics),
		Post:       handler.NewPostHandler(service.NewPostService(db), log),
		PostLike:   handler.NewPostLikeHandler(service.NewPostLikeService(db, rdb, log), log),
		Comment:    handler.NewCommentHandler(service.NewCommentService(db), log),
		Journal:    handler.NewJournalHandler(service.NewJournalService(db), log),
	})
	return &env{db: db, mr: mr, proc: proc, issuer: issuer, tokens: tokens, metrics: metrics, engine: engine}
}

// login 直接签发并登记 token，绕过密码校验
func (e *env) login(t *testing.T, userID string) string {
	t.Helper()
	pair, err := e.issuer.GeneratePair(userID, model.UserRoleUser)
	require.NoError(t, err)
	require.NoError(t, e.tokens.AddUserToken(context.Background(), userID, pair.AccessToken))
	return pair.AccessToken
}

func (e *env) seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Password: "x", DisplayName: email, Role: model.UserRoleUser}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *env) seedCommunity(t *testing.T, creatorID, name string, price int64) *model.Community {
	t.Helper()
	c := &model.Community{Name: name, CreatorID: creatorID, IsPublic: true, PriceInCents: price, Status: model.CommunityActive}
	require.NoError(t, mysql.NewCommunityRepository(e.db).Create(context.Background(), c))
	return c
}

func (e *env) memberships(t *testing.T, communityID, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Membership{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).Count(&n).Error)
	return n
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *env) postWebhook(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func signEvent(t *testing.T, id, eventType, object string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, id, eventType, object))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
