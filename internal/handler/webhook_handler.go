package handler

import (
	"errors"
	"io"
	"net/http"

	"CommunityHub/internal/payment"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/redis"
	"CommunityHub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const webhookBodyLimit = 1 << 20

// EventVerifier 生产实现为 payment.StripeProcessor
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (payment.Event, error)
}

type WebhookHandler struct {
	verifier EventVerifier
	svc      *service.MembershipService
	events   *redis.EventRepository
	log      *zap.Logger
	metrics  *pkg.Metrics
}

func NewWebhookHandler(verifier EventVerifier, svc *service.MembershipService, events *redis.EventRepository, log *zap.Logger, metrics *pkg.Metrics) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, svc: svc, events: events, log: log, metrics: metrics}
}

// Stripe 签名校验 -> 去重 -> 对账。
// 重投无法修复的业务错误（未支付、metadata 缺失）记录后返回 200；存储失败返回 500 让 Stripe 重投。
func (h *WebhookHandler) Stripe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.observe("unknown", "bad_request")
		badRequest(c, "failed to read request body")
		return
	}

	ev, err := h.verifier.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			h.observe("unknown", "invalid_signature")
			h.log.Warn("stripe webhook signature rejected", zap.Error(err))
			badRequest(c, "invalid signature")
			return
		}
		h.observe("unknown", "invalid_payload")
		h.log.Warn("stripe webhook payload rejected", zap.Error(err))
		badRequest(c, "invalid payload")
		return
	}

	ctx := c.Request.Context()
	logger := h.log.With(zap.String("event_id", ev.EventID()), zap.String("event_type", ev.EventType()))

	done, err := h.events.IsProcessed(ctx, ev.EventID())
	if err != nil {
		// 去重只是优化，对账本身幂等
		logger.Warn("webhook dedupe lookup failed", zap.Error(err))
	}
	if done {
		h.observe(ev.EventType(), "duplicate")
		c.JSON(http.StatusOK, gin.H{"received": true, "status": "duplicate"})
		return
	}

	if err := h.svc.HandleEvent(ctx, ev); err != nil {
		switch pkg.KindOf(err) {
		case pkg.KindPaymentIncomplete, pkg.KindInvalidState:
			h.observe(ev.EventType(), "rejected")
			logger.Warn("stripe event acknowledged without effect", zap.Error(err))
		default:
			h.observe(ev.EventType(), "error")
			logger.Error("stripe event processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "webhook processing failed"})
			return
		}
	} else {
		h.observe(ev.EventType(), "processed")
	}

	if err := h.events.MarkProcessed(ctx, ev.EventID()); err != nil {
		logger.Warn("webhook dedupe mark failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) observe(eventType, outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}
