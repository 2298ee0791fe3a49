package service

import (
	"context"
	"errors"
	"fmt"

	"CommunityHub/internal/model"
	"CommunityHub/internal/payment"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentProcessor 支付侧能力，生产实现为 payment.StripeProcessor
type PaymentProcessor interface {
	CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (string, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*payment.CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// MembershipState 单个 (community, user) 的本地状态。
// checkout 进行中只存在于支付侧的 session 里，本地没有对应状态。
type MembershipState string

const (
	StateNonMember MembershipState = "non_member"
	StateMember    MembershipState = "member"
)

const (
	SourceConfirm = "confirm"
	SourceWebhook = "webhook"

	reasonFreeJoin     = "free_join"
	reasonCheckout     = "checkout_completed"
	reasonLeave        = "leave"
	reasonSubscription = "subscription_deleted"

	defaultCurrency = "usd"
)

type CompletionResult struct {
	Success       bool `json:"success"`
	AlreadyMember bool `json:"already_member,omitempty"`
}

type MembershipService struct {
	communities *mysql.CommunityRepository
	members     *mysql.MembershipRepository
	users       *mysql.UserRepository
	processor   PaymentProcessor
	currency    string
	log         *zap.Logger
	metrics     *pkg.Metrics
}

func NewMembershipService(db *gorm.DB, processor PaymentProcessor, currency string, log *zap.Logger, metrics *pkg.Metrics) *MembershipService {
	if currency == "" {
		currency = defaultCurrency
	}
	return &MembershipService{
		communities: mysql.NewCommunityRepository(db),
		members:     mysql.NewMembershipRepository(db),
		users:       mysql.NewUserRepository(db),
		processor:   processor,
		currency:    currency,
		log:         log,
		metrics:     metrics,
	}
}

// StartCheckout 为付费社区创建订阅 checkout，返回给浏览器的 client secret。
// 本地不保存任何 pending 状态，(community_id, user_id) 放在 session metadata 里。
func (s *MembershipService) StartCheckout(ctx context.Context, userID, communityID string) (string, error) {
	if userID == "" {
		return "", pkg.NewError(pkg.KindUnauthenticated, "you must be logged in to subscribe")
	}
	community, err := s.activeCommunity(ctx, communityID)
	if err != nil {
		return "", err
	}
	if community.IsFree() {
		return "", pkg.NewError(pkg.KindInvalidOperation, "this community is free to join")
	}
	isMember, err := s.members.IsMember(ctx, communityID, userID)
	if err != nil {
		return "", pkg.WrapError(pkg.KindInternal, "check membership", err)
	}
	if isMember {
		return "", pkg.NewError(pkg.KindConflict, "you are already a member of this community")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkg.NewError(pkg.KindUnauthenticated, "you must be logged in to subscribe")
		}
		return "", pkg.WrapError(pkg.KindInternal, "load user", err)
	}

	description := community.Description
	if description == "" {
		description = fmt.Sprintf("Monthly membership to %s", community.Name)
	}
	secret, err := s.processor.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		CommunityID:   community.ID,
		UserID:        userID,
		CustomerEmail: user.Email,
		ProductName:   fmt.Sprintf("%s Membership", community.Name),
		Description:   description,
		UnitAmount:    community.PriceInCents,
		Currency:      s.currency,
		Interval:      "month",
	})
	if err != nil {
		return "", err
	}
	s.log.Info("checkout session created",
		zap.String("community_id", community.ID),
		zap.String("user_id", userID))
	return secret, nil
}

// ConfirmCheckout 同步确认入口：客户端支付完成后带 session id 调用。
// session 必须属于调用者本人。
func (s *MembershipService) ConfirmCheckout(ctx context.Context, callerID, sessionID string) (*CompletionResult, error) {
	if callerID == "" {
		return nil, pkg.NewError(pkg.KindUnauthenticated, "you must be logged in")
	}
	if sessionID == "" {
		return nil, pkg.NewError(pkg.KindInvalidArgument, "session id required")
	}
	session, err := s.processor.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.observe(SourceConfirm, "processor_error")
		return nil, err
	}
	return s.completePayment(ctx, *session, SourceConfirm, callerID)
}

// HandleEvent 异步入口：签名校验后的 webhook 事件
func (s *MembershipService) HandleEvent(ctx context.Context, ev payment.Event) error {
	switch e := ev.(type) {
	case payment.CheckoutCompleted:
		_, err := s.completePayment(ctx, e.Session, SourceWebhook, "")
		return err
	case payment.SubscriptionDeleted:
		_, err := s.CancelSubscription(ctx, e.SubscriptionID)
		return err
	case payment.Ignored:
		return nil
	default:
		return pkg.NewError(pkg.KindInvalidState, fmt.Sprintf("unsupported event %T", ev))
	}
}

// CompletePayment 两个入口共用的对账逻辑，可重复调用
func (s *MembershipService) CompletePayment(ctx context.Context, session payment.CheckoutSession, source string) (*CompletionResult, error) {
	return s.completePayment(ctx, session, source, "")
}

func (s *MembershipService) completePayment(ctx context.Context, session payment.CheckoutSession, source, expectUserID string) (*CompletionResult, error) {
	if !session.Paid() {
		s.observe(source, "payment_incomplete")
		return nil, pkg.NewError(pkg.KindPaymentIncomplete, "payment not completed")
	}
	communityID, userID := session.CommunityID(), session.UserID()
	if communityID == "" || userID == "" {
		s.observe(source, "invalid_metadata")
		return nil, pkg.NewError(pkg.KindInvalidState, "invalid session metadata")
	}
	if expectUserID != "" && userID != expectUserID {
		s.observe(source, "forbidden")
		return nil, pkg.NewError(pkg.KindForbidden, "checkout session belongs to another user")
	}

	// 先查：已是会员则零写入直接返回
	exists, err := s.members.IsMember(ctx, communityID, userID)
	if err != nil {
		s.observe(source, "store_error")
		return nil, pkg.WrapError(pkg.KindInternal, "check membership", err)
	}
	if exists {
		s.observe(source, "already_member")
		return &CompletionResult{Success: true, AlreadyMember: true}, nil
	}

	m := &model.Membership{
		CommunityID: communityID,
		UserID:      userID,
		Role:        model.MemberRoleMember,
	}
	if session.SubscriptionID != "" {
		sub := session.SubscriptionID
		m.StripeSubscriptionID = &sub
	}
	// 并发下两次确认可能都通过上面的检查，唯一键 + DO NOTHING 兜底
	created, err := s.members.Join(ctx, m, reasonCheckout)
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		s.observe(source, "store_error")
		return nil, writeErr("failed to create membership", err)
	}
	if !created {
		s.observe(source, "already_member")
		return &CompletionResult{Success: true, AlreadyMember: true}, nil
	}

	s.observe(source, "created")
	s.log.Info("membership created from checkout",
		zap.String("source", source),
		zap.String("session_id", session.ID),
		zap.String("community_id", communityID),
		zap.String("user_id", userID))
	return &CompletionResult{Success: true}, nil
}

// CancelSubscription 订阅取消：删除所有引用该订阅号的会员；没有匹配行不是错误
func (s *MembershipService) CancelSubscription(ctx context.Context, subscriptionID string) (int, error) {
	if subscriptionID == "" {
		return 0, pkg.NewError(pkg.KindInvalidState, "subscription id required")
	}
	removed, err := s.members.DeleteBySubscription(ctx, subscriptionID, reasonSubscription)
	if err != nil {
		s.observe("cancellation", "store_error")
		return 0, writeErr("failed to remove membership", err)
	}
	if len(removed) == 0 {
		s.observe("cancellation", "noop")
		return 0, nil
	}
	s.observe("cancellation", "removed")
	for _, m := range removed {
		s.log.Info("membership removed after subscription cancellation",
			zap.String("subscription_id", subscriptionID),
			zap.String("community_id", m.CommunityID),
			zap.String("user_id", m.UserID))
	}
	return len(removed), nil
}

// JoinFree 免费社区直接加入
func (s *MembershipService) JoinFree(ctx context.Context, userID, communityID string) (*model.Membership, error) {
	if userID == "" {
		return nil, pkg.ErrUnauthenticated
	}
	community, err := s.activeCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if !community.IsFree() {
		return nil, pkg.NewError(pkg.KindInvalidOperation, "this community requires a paid subscription")
	}
	m := &model.Membership{CommunityID: communityID, UserID: userID, Role: model.MemberRoleMember}
	created, err := s.members.Join(ctx, m, reasonFreeJoin)
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, writeErr("failed to join community", err)
	}
	if !created {
		return nil, pkg.NewError(pkg.KindConflict, "you are already a member of this community")
	}
	return m, nil
}

// Leave 主动退出。付费会员先在支付侧取消订阅，之后到达的取消事件会命中 0 行。
func (s *MembershipService) Leave(ctx context.Context, userID, communityID string) error {
	if userID == "" {
		return pkg.ErrUnauthenticated
	}
	m, err := s.members.Find(ctx, communityID, userID)
	if err != nil {
		return lookupErr(err, "you are not a member of this community")
	}
	if m.Role == model.MemberRoleCreator {
		return pkg.NewError(pkg.KindInvalidOperation, "the creator cannot leave the community")
	}
	if m.StripeSubscriptionID != nil && *m.StripeSubscriptionID != "" {
		if err := s.processor.CancelSubscription(ctx, *m.StripeSubscriptionID); err != nil {
			return err
		}
	}
	if _, err := s.members.Leave(ctx, communityID, userID, reasonLeave); err != nil {
		return writeErr("failed to leave community", err)
	}
	return nil
}

// State 返回本地可观测的状态：member 或 non_member
func (s *MembershipService) State(ctx context.Context, userID, communityID string) (MembershipState, error) {
	if userID == "" {
		return "", pkg.ErrUnauthenticated
	}
	ok, err := s.members.IsMember(ctx, communityID, userID)
	if err != nil {
		return "", pkg.WrapError(pkg.KindInternal, "check membership", err)
	}
	if ok {
		return StateMember, nil
	}
	return StateNonMember, nil
}

func (s *MembershipService) activeCommunity(ctx context.Context, communityID string) (*model.Community, error) {
	if communityID == "" {
		return nil, pkg.NewError(pkg.KindNotFound, "community not found")
	}
	community, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, lookupErr(err, "community not found")
	}
	if !community.IsActive() {
		return nil, pkg.NewError(pkg.KindNotFound, "community not found")
	}
	return community, nil
}

func (s *MembershipService) observe(source, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.MembershipReconciliation.WithLabelValues(source, outcome).Inc()
}
