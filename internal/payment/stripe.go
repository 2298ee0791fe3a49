package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"CommunityHub/internal/pkg"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrInvalidSignature = errors.New("invalid stripe signature")

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// APIURL 仅测试时覆盖
	APIURL string
}

func (c StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return errors.New("stripe: secret key required")
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe: webhook secret required")
	}
	return nil
}

// StripeProcessor 每个实例持有自己的 API client，不修改全局 stripe.Key
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProcessor(cfg StripeConfig) (*StripeProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var backends *stripe.Backends
	if cfg.APIURL != "" {
		backends = &stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL:               stripe.String(cfg.APIURL),
				MaxNetworkRetries: stripe.Int64(0),
				LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
			}),
		}
	}
	return &StripeProcessor{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreateCheckoutSession 以订阅模式创建嵌入式 checkout，返回 client secret
func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	interval := req.Interval
	if interval == "" {
		interval = string(stripe.PriceRecurringIntervalMonth)
	}
	params := &stripe.CheckoutSessionParams{
		UIMode:               stripe.String(string(stripe.CheckoutSessionUIModeEmbedded)),
		RedirectOnCompletion: stripe.String(string(stripe.CheckoutSessionRedirectOnCompletionNever)),
		Mode:                 stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.ProductName),
						Description: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.UnitAmount),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(interval),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata(MetadataCommunityID, req.CommunityID)
	params.AddMetadata(MetadataUserID, req.UserID)

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", wrapStripeError("create checkout session", err)
	}
	if s.ClientSecret == "" {
		return "", pkg.NewError(pkg.KindInternal, "checkout session has no client secret")
	}
	return s.ClientSecret, nil
}

// GetCheckoutSession 从 Stripe 取权威的 session 状态
func (p *StripeProcessor) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, wrapStripeError("retrieve checkout session", err)
	}
	out := &CheckoutSession{
		ID:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out, nil
}

// CancelSubscription 立即取消订阅；已不存在视为成功
func (p *StripeProcessor) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := p.api.Subscriptions.Cancel(subscriptionID, params)
	if err == nil {
		return nil
	}
	err = wrapStripeError("cancel subscription", err)
	if pkg.KindOf(err) == pkg.KindNotFound {
		return nil
	}
	return err
}

// ConstructEvent 校验签名后再解码事件
func (p *StripeProcessor) ConstructEvent(payload []byte, signature string) (Event, error) {
	return VerifyEvent(payload, signature, p.webhookSecret)
}

func VerifyEvent(payload []byte, signature, secret string) (Event, error) {
	if signature == "" || secret == "" {
		return nil, ErrInvalidSignature
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if evt.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	return DecodeEvent(evt.ID, string(evt.Type), evt.Data.Raw)
}

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
		return pkg.WrapError(pkg.KindNotFound, op+": not found", err)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}
