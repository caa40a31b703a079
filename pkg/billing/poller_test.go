package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/requestid"
)

type stubLocker struct {
	acquired bool
	err      error
	released atomic.Int32
}

func (l *stubLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func() { l.released.Add(1) }, true, nil
}

func newPoller(provider billing.Provider, opts ...billing.PollerOption) *billing.Poller {
	f := newFetcher(billing.NewMemoryStore(), provider)
	opts = append([]billing.PollerOption{billing.WithPollerLogger(discardLogger())}, opts...)
	return billing.NewPoller(f, opts...)
}

func TestPoller_StateTransitions(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	provider := &mockProvider{}
	provider.On("ListEvents", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-proceed
		}).
		Return(&billing.EventPage{}, nil).Once()

	p := newPoller(provider)
	assert.Equal(t, billing.StateIdle, p.State())

	done := make(chan error, 1)
	go func() {
		_, err := p.PollOnce(context.Background())
		done <- err
	}()

	<-entered
	assert.Equal(t, billing.StatePolling, p.State())
	close(proceed)

	require.NoError(t, <-done)
	assert.Equal(t, billing.StateIdle, p.State())
}

func TestPoller_TagsCycleLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithContextExtractors(requestid.LoggerExtractor()))
	provider := &feedProvider{}
	p := newPoller(provider, billing.WithPollerLogger(log))

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	_, err = p.PollOnce(context.Background())
	require.NoError(t, err)

	ids := map[string]int{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		id, _ := rec["request_id"].(string)
		require.True(t, strings.HasPrefix(id, "poll_"), line)
		ids[id]++
	}
	assert.Len(t, ids, 2, "each cycle gets its own id")
	for _, n := range ids {
		assert.Equal(t, 2, n, "start and finish share the id")
	}
}

func TestPoller_FailedCycleReturnsToIdle(t *testing.T) {
	t.Parallel()

	provider := &feedProvider{listErr: errors.New("timeout")}
	p := newPoller(provider)

	_, err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, billing.ErrFetchEvents)
	assert.Equal(t, billing.StateIdle, p.State())
}

func TestPoller_RecoversPanic(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	provider.On("ListEvents", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("nil map write") })

	locker := &stubLocker{acquired: true}
	p := newPoller(provider, billing.WithLocker(locker))

	_, err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, billing.ErrPollPanicked)
	assert.Equal(t, billing.StateIdle, p.State())
	assert.Equal(t, int32(1), locker.released.Load())
}

func TestPoller_SkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	provider := &feedProvider{}
	p := newPoller(provider, billing.WithLocker(&stubLocker{acquired: false}))

	_, err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, billing.ErrLockNotAcquired)
	assert.Empty(t, provider.Requests())
}

func TestPoller_LockBackendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("redis unreachable")
	provider := &feedProvider{}
	p := newPoller(provider, billing.WithLocker(&stubLocker{err: boom}))

	_, err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, provider.Requests())
}

func TestPoller_RunPollsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	provider := &feedProvider{listErr: errors.New("offline")}
	p := newPoller(provider, billing.WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	require.Eventually(t, func() bool {
		return len(provider.Requests()) >= 3
	}, 2*time.Second, 5*time.Millisecond, "failed cycles must not stop the loop")

	cancel()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
	assert.Equal(t, billing.StateIdle, p.State())
}

func TestPoller_RunReturnsOnCancel(t *testing.T) {
	t.Parallel()

	provider := &feedProvider{}
	p := newPoller(provider, billing.WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(provider.Requests()) == 1
	}, time.Second, 5*time.Millisecond, "first cycle must run without waiting for the interval")

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Len(t, provider.Requests(), 1)
}

func TestPollPeriodically_DisabledWithoutKey(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	p := billing.PollPeriodically(context.Background(), billing.Config{}, billing.NewMemoryStore(),
		billing.WithPollerLogger(log))

	assert.Nil(t, p)
	assert.Equal(t, 1, strings.Count(buf.String(), "level=WARN"))
	assert.Contains(t, buf.String(), "STRIPE_API_KEY")
}

func TestPollPeriodically_UsesGivenProvider(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	provider := &feedProvider{}
	cfg := billing.Config{StripeAPIKey: "sk_test_123", PollInterval: time.Hour}
	p := billing.PollPeriodically(ctx, cfg, billing.NewMemoryStore(),
		billing.WithProvider(provider),
		billing.WithPollerLogger(discardLogger()))
	require.NotNil(t, p)

	require.Eventually(t, func() bool { return len(provider.Requests()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestPoller_StartTwiceRunsOneLoop(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	provider := &feedProvider{}
	p := newPoller(provider, billing.WithInterval(time.Hour))

	assert.NotPanics(t, func() {
		p.Start(ctx)
		p.Start(ctx)
	})
	require.Eventually(t, func() bool { return len(provider.Requests()) >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
	assert.Len(t, provider.Requests(), 1)
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "idle", billing.StateIdle.String())
	assert.Equal(t, "polling", billing.StatePolling.String())
}

func TestNewPoller_Panics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { billing.NewPoller(nil) })
}
