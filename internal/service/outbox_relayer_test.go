package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"CommunityHub/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sentMessage struct {
	key, eventType string
	value          []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	msgs []sentMessage
	err  error
}

func (p *fakeProducer) Send(_ context.Context, key, eventType string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, sentMessage{key, eventType, value})
	return nil
}

type sentMail struct{ to, subject, body string }

type fakeMailer struct {
	mails []sentMail
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mails = append(m.mails, sentMail{to, subject, body})
	return nil
}

func outboxStatuses(t *testing.T, f *fixture) map[int8]int {
	t.Helper()
	var rows []model.MembershipOutbox
	require.NoError(t, f.db.Find(&rows).Error)
	out := map[int8]int{}
	for _, r := range rows {
		out[r.Status]++
	}
	return out
}

func TestDrainOnceDelivers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := seedUser(t, f.db, "creator@example.com")
	c := seedCommunity(t, f.db, creator.ID, "Gophers", 999)
	f.proc.addSession("cs_1", "paid", "sub_1", c.ID, "u1")
	_, err := f.svc.ConfirmCheckout(ctx, "u1", "cs_1")
	require.NoError(t, err)

	producer := &fakeProducer{}
	relayer := NewOutboxRelayer(f.db, KafkaSender(producer), zaptest.NewLogger(t), f.metrics)

	assert.Equal(t, 2, relayer.DrainOnce(ctx))
	assert.Zero(t, relayer.DrainOnce(ctx))
	assert.Equal(t, map[int8]int{model.OutboxSent: 2}, outboxStatuses(t, f))

	require.Len(t, producer.msgs, 2)
	last := producer.msgs[1]
	assert.Equal(t, c.ID, last.key)
	assert.Equal(t, model.EventMembershipCreated, last.eventType)

	var ev model.MembershipEvent
	require.NoError(t, json.Unmarshal(last.value, &ev))
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "sub_1", ev.SubscriptionID)
	assert.Equal(t, reasonCheckout, ev.Reason)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.OutboxRelayed.WithLabelValues("sent")))
}

func TestDrainOnceRetriesUntilLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := seedUser(t, f.db, "creator@example.com")
	seedCommunity(t, f.db, creator.ID, "Gophers", 0)

	producer := &fakeProducer{err: errors.New("broker down")}
	relayer := NewOutboxRelayer(f.db, KafkaSender(producer), zaptest.NewLogger(t), f.metrics, WithMaxRetry(2))

	assert.Zero(t, relayer.DrainOnce(ctx))
	assert.Zero(t, relayer.DrainOnce(ctx))
	// 已达重试上限，不再被扫描
	assert.Zero(t, relayer.DrainOnce(ctx))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.OutboxRelayed.WithLabelValues("failed")))

	var ob model.MembershipOutbox
	require.NoError(t, f.db.First(&ob).Error)
	assert.EqualValues(t, model.OutboxFailed, ob.Status)
	assert.Equal(t, 2, ob.Retry)
}

func TestDrainOnceRecoversAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := seedUser(t, f.db, "creator@example.com")
	seedCommunity(t, f.db, creator.ID, "Gophers", 0)

	producer := &fakeProducer{err: errors.New("broker down")}
	relayer := NewOutboxRelayer(f.db, KafkaSender(producer), zaptest.NewLogger(t), nil)
	assert.Zero(t, relayer.DrainOnce(ctx))

	producer.err = nil
	assert.Equal(t, 1, relayer.DrainOnce(ctx))
	assert.Equal(t, map[int8]int{model.OutboxSent: 1}, outboxStatuses(t, f))
}

func TestMultiSenderStopsOnError(t *testing.T) {
	f := newFixture(t)
	calls := 0
	ok := func(context.Context, *model.MembershipOutbox) error { calls++; return nil }
	boom := errors.New("boom")
	bad := func(context.Context, *model.MembershipOutbox) error { return boom }

	send := MultiSender(f.db, Sink{"a", ok}, Sink{"b", bad}, Sink{"c", ok})
	ob := &model.MembershipOutbox{}
	err := send(context.Background(), ob)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.EqualValues(t, 0b001, ob.Delivered)

	assert.NoError(t, MultiSender(f.db, Sink{"log", LogSender(zaptest.NewLogger(t))})(context.Background(), &model.MembershipOutbox{}))
}

func TestMultiSenderSkipsDeliveredSinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := seedUser(t, f.db, "creator@example.com")
	seedCommunity(t, f.db, creator.ID, "Gophers", 0)

	producer := &fakeProducer{}
	mailErr := errors.New("smtp down")
	mailCalls := 0
	flakyMail := func(context.Context, *model.MembershipOutbox) error {
		mailCalls++
		return mailErr
	}
	relayer := NewOutboxRelayer(f.db,
		MultiSender(f.db, Sink{"kafka", KafkaSender(producer)}, Sink{"mail", flakyMail}),
		zaptest.NewLogger(t), nil)

	assert.Zero(t, relayer.DrainOnce(ctx))
	assert.Zero(t, relayer.DrainOnce(ctx))
	assert.Len(t, producer.msgs, 1, "kafka is not resent while mail keeps failing")
	assert.Equal(t, 2, mailCalls)

	mailErr = nil
	assert.Equal(t, 1, relayer.DrainOnce(ctx))
	assert.Len(t, producer.msgs, 1)
	assert.Equal(t, 3, mailCalls)

	var row model.MembershipOutbox
	require.NoError(t, f.db.First(&row).Error)
	assert.EqualValues(t, model.OutboxSent, row.Status)
	assert.EqualValues(t, 0b11, row.Delivered)
}

func TestMailSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := seedUser(t, f.db, "creator@example.com")
	c := seedCommunity(t, f.db, creator.ID, "Gophers", 0)
	mailer := &fakeMailer{}
	send := MailSender(mailer, f.db)

	require.NoError(t, send(ctx, &model.MembershipOutbox{
		EventType: model.EventMembershipCreated, CommunityID: c.ID, UserID: creator.ID,
	}))
	require.NoError(t, send(ctx, &model.MembershipOutbox{
		EventType: model.EventMembershipDeleted, CommunityID: c.ID, UserID: creator.ID,
	}))
	// 用户或社区不存在时跳过
	require.NoError(t, send(ctx, &model.MembershipOutbox{
		EventType: model.EventMembershipCreated, CommunityID: c.ID, UserID: "gone",
	}))
	require.NoError(t, send(ctx, &model.MembershipOutbox{
		EventType: model.EventMembershipCreated, CommunityID: "gone", UserID: creator.ID,
	}))
	// 创建者随社区自动入会不发欢迎信
	require.NoError(t, send(ctx, &model.MembershipOutbox{
		EventType: model.EventMembershipCreated, CommunityID: c.ID, UserID: creator.ID,
		Payload: `{"community_id":"` + c.ID + `","user_id":"` + creator.ID + `","role":"creator","reason":"creator"}`,
	}))
	assert.Error(t, send(ctx, &model.MembershipOutbox{
		EventType: model.EventMembershipCreated, CommunityID: c.ID, UserID: creator.ID, Payload: "{",
	}))

	require.Len(t, mailer.mails, 2)
	assert.Equal(t, "creator@example.com", mailer.mails[0].to)
	assert.Equal(t, "Welcome to Gophers", mailer.mails[0].subject)
	assert.Contains(t, mailer.mails[0].body, "Gophers")
	assert.Equal(t, "Your Gophers membership has ended", mailer.mails[1].subject)
}

func TestRelayerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	creator := seedUser(t, f.db, "creator@example.com")
	seedCommunity(t, f.db, creator.ID, "Gophers", 0)

	producer := &fakeProducer{}
	relayer := NewOutboxRelayer(f.db, KafkaSender(producer), zaptest.NewLogger(t), nil, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relayer.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		producer.mu.Lock()
		defer producer.mu.Unlock()
		return len(producer.msgs) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relayer did not stop")
	}
}
