package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
)

// ─────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────

type fakeGate struct {
	current  domain.Permission
	answer   domain.Permission
	requests int
	reads    int
}

func (g *fakeGate) Permission(context.Context) (domain.Permission, error) {
	g.reads++
	return g.current, nil
}

func (g *fakeGate) Request(context.Context) (domain.Permission, error) {
	g.requests++
	g.current = g.answer
	return g.answer, nil
}

type fakeLocator struct {
	reg   *fakeRegistration
	calls int
}

func (l *fakeLocator) Registration(context.Context) (Registration, error) {
	l.calls++
	if l.reg == nil {
		return nil, domain.ErrRegistrationMissing
	}
	return l.reg, nil
}

type fakeRegistration struct {
	handle       *fakeHandle
	subscribeErr error
	revokeFails  bool
	lastOpts     SubscribeOptions
	creates      int
}

func (r *fakeRegistration) Subscription(context.Context) (Handle, error) {
	if r.handle == nil {
		return nil, nil
	}
	return r.handle, nil
}

func (r *fakeRegistration) Subscribe(_ context.Context, opts SubscribeOptions) (Handle, error) {
	r.creates++
	r.lastOpts = opts
	if r.subscribeErr != nil {
		return nil, r.subscribeErr
	}
	r.handle = &fakeHandle{
		reg: r,
		sub: domain.Subscription{
			Endpoint: "https://push.example/device-1",
			Keys:     domain.SubscriptionKeys{P256DH: "p256dh", Auth: "auth"},
		},
	}
	return r.handle, nil
}

type fakeHandle struct {
	reg     *fakeRegistration
	sub     domain.Subscription
	revokes int
}

func (h *fakeHandle) Subscription() domain.Subscription { return h.sub }

func (h *fakeHandle) Unsubscribe(context.Context) (bool, error) {
	h.revokes++
	if h.reg.revokeFails {
		return false, nil
	}
	h.reg.handle = nil
	return true, nil
}

type fakeRemote struct {
	mu             sync.Mutex
	records        map[string]domain.Subscription
	subscribeErr   error
	unsubscribeErr error
	// storeOnFailure keeps the record even when Subscribe returns subscribeErr
	storeOnFailure bool
	subscribes     []string
	unsubscribes   []string

	// when set, Subscribe signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: map[string]domain.Subscription{}}
}

func (r *fakeRemote) Subscribe(_ context.Context, sub domain.Subscription) error {
	if r.entered != nil {
		close(r.entered)
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribes = append(r.subscribes, sub.Endpoint)
	if r.subscribeErr != nil {
		if r.storeOnFailure {
			r.records[sub.Endpoint] = sub
		}
		return r.subscribeErr
	}
	r.records[sub.Endpoint] = sub
	return nil
}

func (r *fakeRemote) Unsubscribe(_ context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribes = append(r.unsubscribes, endpoint)
	if r.unsubscribeErr != nil {
		return r.unsubscribeErr
	}
	delete(r.records, endpoint)
	return nil
}

func testServerKey(t *testing.T) string {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes())
}

type fixture struct {
	gate    *fakeGate
	locator *fakeLocator
	reg     *fakeRegistration
	remote  *fakeRemote
	mgr     *Manager
}

func newFixture(t *testing.T, perm domain.Permission) *fixture {
	t.Helper()
	f := &fixture{
		gate:   &fakeGate{current: perm, answer: domain.PermissionGranted},
		reg:    &fakeRegistration{},
		remote: newFakeRemote(),
	}
	f.locator = &fakeLocator{reg: f.reg}
	mgr, err := NewManager(f.gate, f.locator, f.remote, testServerKey(t), logger.Nop())
	require.NoError(t, err)
	f.mgr = mgr
	return f
}

// subscribed puts the fixture in the Subscribed state on both sides.
func (f *fixture) subscribed(t *testing.T) {
	t.Helper()
	res, err := f.mgr.Subscribe(context.Background())
	require.NoError(t, err)
	require.Equal(t, ResultSubscribed, res)
	f.remote.subscribes = nil
}

// ─────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────

func TestNewManager_InvalidKey(t *testing.T) {
	_, err := NewManager(&fakeGate{}, &fakeLocator{}, newFakeRemote(), "not-a-key", logger.Nop())
	assert.ErrorIs(t, err, ErrInvalidServerKey)
}

func TestSubscribe_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	require.Equal(t, domain.StateUnsubscribed, f.mgr.CheckStatus(ctx))

	res, err := f.mgr.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultSubscribed, res)

	assert.Equal(t, []string{"https://push.example/device-1"}, f.remote.subscribes)
	assert.Len(t, f.remote.records, 1)
	assert.Equal(t, domain.StateSubscribed, f.mgr.CheckStatus(ctx))
	assert.Equal(t, domain.StateSubscribed, f.mgr.State(ctx))

	assert.True(t, f.reg.lastOpts.UserVisibleOnly)
	assert.Len(t, f.reg.lastOpts.ApplicationServerKey, 65)
	assert.Zero(t, f.gate.requests, "granted permission must not prompt")
}

func TestSubscribe_RequestsUndecidedPermission(t *testing.T) {
	f := newFixture(t, domain.PermissionDefault)

	res, err := f.mgr.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultSubscribed, res)
	assert.Equal(t, 1, f.gate.requests)
}

func TestSubscribe_PermissionDenied(t *testing.T) {
	f := newFixture(t, domain.PermissionDenied)

	res, err := f.mgr.Subscribe(context.Background())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.NotErrorIs(t, err, ErrPermissionDismissed)
	assert.Equal(t, ResultNone, res)

	assert.Zero(t, f.gate.requests)
	assert.Zero(t, f.locator.calls, "no local calls")
	assert.Zero(t, f.reg.creates)
	assert.Empty(t, f.remote.subscribes, "no remote calls")
}

func TestSubscribe_PermissionDismissed(t *testing.T) {
	f := newFixture(t, domain.PermissionDefault)
	f.gate.answer = domain.PermissionDefault

	_, err := f.mgr.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDismissed)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Zero(t, f.locator.calls)
	assert.Empty(t, f.remote.subscribes)
}

func TestSubscribe_AlreadySubscribed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.subscribed(t)

	res, err := f.mgr.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadySubscribed, res)
	assert.Equal(t, 1, f.reg.creates)
	assert.Empty(t, f.remote.subscribes)
}

func TestSubscribe_RegistrationMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.locator.reg = nil

	_, err := f.mgr.Subscribe(ctx)
	assert.ErrorIs(t, err, domain.ErrRegistrationMissing)
	assert.Empty(t, f.remote.subscribes)
	assert.Equal(t, domain.StateUnsubscribed, f.mgr.CheckStatus(ctx))
}

func TestSubscribe_LocalCreateFails(t *testing.T) {
	f := newFixture(t, domain.PermissionGranted)
	f.reg.subscribeErr = errors.New("push service unreachable")

	_, err := f.mgr.Subscribe(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.remote.subscribes)
}

func TestSubscribe_RemoteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.remote.subscribeErr = errors.New("503")

	res, err := f.mgr.Subscribe(ctx)
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.NotErrorIs(t, err, domain.ErrInconsistentState)
	assert.Equal(t, ResultNone, res)

	assert.Nil(t, f.reg.handle, "local handle destroyed")
	assert.Empty(t, f.remote.records, "no remote record")
	assert.Equal(t, domain.StateUnsubscribed, f.mgr.CheckStatus(ctx))
}

func TestSubscribe_RollbackCleansUpRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.remote.subscribeErr = context.DeadlineExceeded
	f.remote.storeOnFailure = true

	_, err := f.mgr.Subscribe(ctx)
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.Nil(t, f.reg.handle)
	assert.Equal(t, []string{"https://push.example/device-1"}, f.remote.unsubscribes)
	assert.Empty(t, f.remote.records, "record stored before the timeout is removed")
}

func TestSubscribe_RemoteCleanupFailureKeepsError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.remote.subscribeErr = errors.New("503")
	f.remote.unsubscribeErr = errors.New("503")

	res, err := f.mgr.Subscribe(ctx)
	assert.Equal(t, ResultNone, res)
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.NotErrorIs(t, err, domain.ErrInconsistentState)
	assert.Equal(t, domain.StateUnsubscribed, f.mgr.CheckStatus(ctx))
}

func TestSubscribe_RollbackFailureIsInconsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.remote.subscribeErr = errors.New("503")
	f.reg.revokeFails = true

	_, err := f.mgr.Subscribe(ctx)
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.ErrorIs(t, err, domain.ErrInconsistentState)
	assert.Equal(t, domain.StateSubscribed, f.mgr.CheckStatus(ctx), "state is re-derived from the surviving handle")
}

func TestUnsubscribe_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.subscribed(t)

	res, err := f.mgr.Unsubscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultUnsubscribed, res)
	assert.Equal(t, []string{"https://push.example/device-1"}, f.remote.unsubscribes)
	assert.Empty(t, f.remote.records)
	assert.Equal(t, domain.StateUnsubscribed, f.mgr.CheckStatus(ctx))
}

func TestUnsubscribe_NothingToUnsubscribe(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, domain.PermissionGranted)
	res, err := f.mgr.Unsubscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultNothingToUnsubscribe, res)
	assert.Empty(t, f.remote.unsubscribes)

	f.locator.reg = nil
	res, err = f.mgr.Unsubscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultNothingToUnsubscribe, res)
}

func TestUnsubscribe_RemoteFailureKeepsHandle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.subscribed(t)
	f.remote.unsubscribeErr = errors.New("timeout")

	_, err := f.mgr.Unsubscribe(ctx)
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	require.NotNil(t, f.reg.handle)
	assert.Zero(t, f.reg.handle.revokes, "local handle untouched")
	assert.Equal(t, domain.StateSubscribed, f.mgr.CheckStatus(ctx))
}

func TestUnsubscribe_RevokeFailureRestoresRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.subscribed(t)
	f.reg.revokeFails = true

	_, err := f.mgr.Unsubscribe(ctx)
	assert.ErrorIs(t, err, domain.ErrRevokeFailed)
	assert.NotErrorIs(t, err, domain.ErrInconsistentState)

	assert.Equal(t, []string{"https://push.example/device-1"}, f.remote.subscribes, "compensating registration")
	assert.Len(t, f.remote.records, 1)
	assert.Equal(t, domain.StateSubscribed, f.mgr.CheckStatus(ctx))
}

func TestUnsubscribe_CompensationFailureIsInconsistent(t *testing.T) {
	f := newFixture(t, domain.PermissionGranted)
	f.subscribed(t)
	f.reg.revokeFails = true
	f.remote.subscribeErr = errors.New("503")

	_, err := f.mgr.Unsubscribe(context.Background())
	assert.ErrorIs(t, err, domain.ErrRevokeFailed)
	assert.ErrorIs(t, err, domain.ErrInconsistentState)
}

func TestTransitionInProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.PermissionGranted)
	f.remote.entered = make(chan struct{})
	f.remote.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.mgr.Subscribe(ctx)
		done <- err
	}()

	<-f.remote.entered
	assert.Equal(t, domain.StatePending, f.mgr.State(ctx))

	_, err := f.mgr.Subscribe(ctx)
	assert.ErrorIs(t, err, domain.ErrTransitionInProgress)
	_, err = f.mgr.Unsubscribe(ctx)
	assert.ErrorIs(t, err, domain.ErrTransitionInProgress)

	close(f.remote.release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.StateSubscribed, f.mgr.State(ctx))
	assert.Equal(t, 1, f.reg.creates)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		op     Op
		result Result
		err    error
		want   string
	}{
		{"subscribed", OpSubscribe, ResultSubscribed, nil, msgSubscribed},
		{"already subscribed", OpSubscribe, ResultAlreadySubscribed, nil, msgAlreadySubscribed},
		{"unsubscribed", OpUnsubscribe, ResultUnsubscribed, nil, msgUnsubscribed},
		{"nothing to unsubscribe", OpUnsubscribe, ResultNothingToUnsubscribe, nil, msgNothingToUnsub},
		{"denied", OpSubscribe, ResultNone, domain.ErrPermissionDenied, msgPermissionDenied},
		{"dismissed", OpSubscribe, ResultNone, ErrPermissionDismissed, msgPermissionDismissed},
		{"not registered", OpSubscribe, ResultNone, domain.ErrRegistrationMissing, msgNotRegistered},
		{"in progress", OpUnsubscribe, ResultNone, domain.ErrTransitionInProgress, msgInProgress},
		{"subscribe failure", OpSubscribe, ResultNone, domain.ErrRemoteRejected, msgSubscribeFailed},
		{"unsubscribe failure", OpUnsubscribe, ResultNone, domain.ErrRevokeFailed, msgUnsubscribeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.op, tt.result, tt.err))
		})
	}
}
