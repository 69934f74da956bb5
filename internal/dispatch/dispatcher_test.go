package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nao1215/pushrelay/internal/domain"
	"github.com/nao1215/pushrelay/internal/events"
	"github.com/nao1215/pushrelay/pkg/event"
)

// fakeStore はメモリ上の購読ストア。
type fakeStore struct {
	mu      sync.Mutex
	subs    map[string]domain.Subscription
	listErr error
}

func newFakeStore(endpoints ...string) *fakeStore {
	s := &fakeStore{subs: make(map[string]domain.Subscription)}
	for _, ep := range endpoints {
		s.subs[ep] = domain.Subscription{Endpoint: ep, Keys: domain.Keys{P256dh: "p", Auth: "a"}}
	}
	return s
}

func (s *fakeStore) ListSubscriptions(context.Context) ([]domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out, nil
}

func (s *fakeStore) DeleteSubscription(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, endpoint)
	return nil
}

func (s *fakeStore) endpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for ep := range s.subs {
		out = append(out, ep)
	}
	sort.Strings(out)
	return out
}

// fakeSender はエンドポイントごとに決めた結果を返すSender。
type fakeSender struct {
	mu       sync.Mutex
	results  map[string]error
	payloads [][]byte
	inFlight int
	maxSeen  int
	delay    time.Duration
}

func (f *fakeSender) Send(ctx context.Context, sub domain.Subscription, payload []byte) error {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if ctx.Err() != nil {
		return &domain.DeliveryError{Endpoint: sub.Endpoint, Err: ctx.Err()}
	}
	return f.results[sub.Endpoint]
}

// recordingPublisher は配信されたイベントを記録する。
type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func testNotification() domain.Notification {
	return domain.Notification{ID: 7, Session: "dev", Window: "build", Message: "build failed", Category: "error"}
}

func TestDispatch_PrunesGoneEndpoints(t *testing.T) {
	t.Parallel()

	store := newFakeStore("https://push/a", "https://push/b", "https://push/gone")
	sender := &fakeSender{results: map[string]error{
		"https://push/gone": &domain.DeliveryError{Endpoint: "https://push/gone", StatusCode: 410, Permanent: true},
	}}
	pub := &recordingPublisher{}
	d := New(store, sender, WithEmitter(events.NewEmitter(pub, zap.NewNop())))

	res := d.Dispatch(context.Background(), testNotification())

	assert.Equal(t, Result{Attempted: 3, Delivered: 2, Pruned: 1}, res)
	assert.Equal(t, []string{"https://push/a", "https://push/b"}, store.endpoints())

	require.Len(t, pub.events, 1)
	assert.Equal(t, event.TypeSubscriptionPruned, pub.events[0].EventType)
	data, err := event.DecodeData[event.SubscriptionData](pub.events[0])
	require.NoError(t, err)
	assert.Equal(t, 410, data.StatusCode)
}

func TestDispatch_TransientFailuresKeepSubscription(t *testing.T) {
	t.Parallel()

	store := newFakeStore("https://push/a", "https://push/busy", "https://push/down")
	sender := &fakeSender{results: map[string]error{
		"https://push/busy": &domain.DeliveryError{Endpoint: "https://push/busy", StatusCode: 429},
		"https://push/down": &domain.DeliveryError{Endpoint: "https://push/down", Err: errors.New("connection refused")},
	}}

	res := New(store, sender).Dispatch(context.Background(), testNotification())

	assert.Equal(t, Result{Attempted: 3, Delivered: 1, Failed: 2}, res)
	assert.Len(t, store.endpoints(), 3)
	// 再送はしない
	assert.Len(t, sender.payloads, 3)
}

func TestDispatch_ClassifiesFailuresForLogging(t *testing.T) {
	t.Parallel()

	store := newFakeStore("https://push/busy", "https://push/odd")
	sender := &fakeSender{results: map[string]error{
		"https://push/busy": &domain.DeliveryError{Endpoint: "https://push/busy", StatusCode: 503},
		"https://push/odd":  errors.New("unexpected"),
	}}
	core, logs := observer.New(zap.WarnLevel)

	res := New(store, sender, WithLogger(zap.New(core))).Dispatch(context.Background(), testNotification())

	assert.Equal(t, Result{Attempted: 2, Failed: 2}, res)
	assert.Len(t, store.endpoints(), 2, "どちらの失敗でも購読は残ること")

	levels := map[string]zapcore.Level{}
	for _, e := range logs.All() {
		for _, f := range e.Context {
			if f.Key == "endpoint" {
				levels[f.String] = e.Level
			}
		}
	}
	assert.Equal(t, zapcore.WarnLevel, levels["https://push/busy"])
	assert.Equal(t, zapcore.ErrorLevel, levels["https://push/odd"])
}

func TestDispatch_NoSubscriptions(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	res := New(newFakeStore(), sender).Dispatch(context.Background(), testNotification())

	assert.Equal(t, Result{}, res)
	assert.Empty(t, sender.payloads)
}

func TestDispatch_ListFailureIsNotPropagated(t *testing.T) {
	t.Parallel()

	store := newFakeStore("https://push/a")
	store.listErr = errors.New("db down")

	res := New(store, &fakeSender{}).Dispatch(context.Background(), testNotification())
	assert.Equal(t, 0, res.Attempted)
}

func TestDispatch_PayloadShape(t *testing.T) {
	t.Parallel()

	store := newFakeStore("https://push/a")
	sender := &fakeSender{}
	d := New(store, sender, WithTerminalBaseURL("https://ttyd.example"))

	d.Dispatch(context.Background(), testNotification())

	require.Len(t, sender.payloads, 1)
	p, err := domain.ParsePushPayload(sender.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, "Claude: build", p.Title)
	assert.Equal(t, "build failed", p.Body)
	assert.Equal(t, int64(7), p.Data.ID)
	assert.Equal(t, "dev", p.Data.Session)
	assert.Equal(t, "build", p.Data.Window)
	assert.Equal(t, "error", p.Data.Category)
	assert.Equal(t, "https://ttyd.example/?tmux_session=dev", p.Data.TerminalURL)
}

func TestDispatch_RespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore("https://push/1", "https://push/2", "https://push/3", "https://push/4", "https://push/5", "https://push/6")
	sender := &fakeSender{delay: 20 * time.Millisecond}

	res := New(store, sender, WithConcurrency(2)).Dispatch(context.Background(), testNotification())

	assert.Equal(t, 6, res.Delivered)
	assert.LessOrEqual(t, sender.maxSeen, 2)
}

func TestDispatch_CallerCancellationDoesNotAbortSends(t *testing.T) {
	t.Parallel()

	store := newFakeStore("https://push/a", "https://push/b")
	sender := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(store, sender).Dispatch(ctx, testNotification())
	assert.Equal(t, 2, res.Delivered)
}
