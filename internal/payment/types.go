// Package payment wraps the payment processor (Stripe): hosted checkout sessions
// and signed webhook events, decoded into a closed set of event variants.
package payment

const (
	MetadataCommunityID = "community_id"
	MetadataUserID      = "user_id"

	PaymentStatusPaid = "paid"

	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// CheckoutRequest 由社区信息合成的一次订阅 checkout，不依赖预建的商品目录
type CheckoutRequest struct {
	CommunityID   string
	UserID        string
	CustomerEmail string
	ProductName   string
	Description   string
	UnitAmount    int64
	Currency      string
	Interval      string
}

// CheckoutSession is the subset of the processor's session the reconciler needs.
type CheckoutSession struct {
	ID             string
	PaymentStatus  string
	SubscriptionID string
	Metadata       map[string]string
}

func (s CheckoutSession) Paid() bool { return s.PaymentStatus == PaymentStatusPaid }

func (s CheckoutSession) CommunityID() string { return s.Metadata[MetadataCommunityID] }

func (s CheckoutSession) UserID() string { return s.Metadata[MetadataUserID] }

// Event is one of CheckoutCompleted, SubscriptionDeleted or Ignored.
type Event interface {
	EventID() string
	EventType() string
	isEvent()
}

type CheckoutCompleted struct {
	ID      string
	Session CheckoutSession
}

func (e CheckoutCompleted) EventID() string   { return e.ID }
func (e CheckoutCompleted) EventType() string { return EventCheckoutSessionCompleted }
func (CheckoutCompleted) isEvent()            {}

type SubscriptionDeleted struct {
	ID             string
	SubscriptionID string
}

func (e SubscriptionDeleted) EventID() string   { return e.ID }
func (e SubscriptionDeleted) EventType() string { return EventSubscriptionDeleted }
func (SubscriptionDeleted) isEvent()            {}

// Ignored 其余事件类型：确认收到但不处理
type Ignored struct {
	ID   string
	Type string
}

func (e Ignored) EventID() string   { return e.ID }
func (e Ignored) EventType() string { return e.Type }
func (Ignored) isEvent()            {}
