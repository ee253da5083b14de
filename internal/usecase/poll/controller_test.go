package poll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"crawl-dashboard/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const pollEvery = 5 * time.Millisecond

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	ch  chan time.Time

	// lead makes Now read later than the last delivered tick.
	lead time.Duration
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, ch: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Add(c.lead)
}

func (c *fakeClock) NewTicker(time.Duration) Ticker { return fakeTicker{c.ch} }

// tick advances the clock by d and delivers a tick, blocking until the
// controller receives it.
func (c *fakeClock) tick(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.ch <- now
}

type fakeTicker struct{ ch chan time.Time }

func (t fakeTicker) C() <-chan time.Time { return t.ch }
func (t fakeTicker) Stop()               {}

type fakeBackend struct {
	mu        sync.Mutex
	sources   []entity.Source
	stats     map[string]entity.Stats
	listErr   error
	statsErr  map[string]error
	listCalls int
	statsIDs  []string
	gate      chan struct{}
}

func (b *fakeBackend) ListSources(ctx context.Context) ([]entity.Source, error) {
	b.mu.Lock()
	b.listCalls++
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := make([]entity.Source, len(b.sources))
	copy(out, b.sources)
	return out, nil
}

func (b *fakeBackend) FetchDerivedStats(ctx context.Context, id string) (entity.Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statsIDs = append(b.statsIDs, id)
	if err := b.statsErr[id]; err != nil {
		return nil, err
	}
	return b.stats[id], nil
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) lists() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

func (b *fakeBackend) statsCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.statsIDs...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	ctl     *Controller
	backend *fakeBackend
	clock   *fakeClock
	metrics *Metrics
	cancel  context.CancelFunc
	done    chan error
}

func startController(t *testing.T, backend *fakeBackend, cfg Config) *harness {
	t.Helper()
	clock := newFakeClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	metrics := NewMetrics(prometheus.NewRegistry())
	ctl := NewController(backend, cfg, WithClock(clock), WithLogger(quietLogger()), WithMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctl.Run(ctx) }()

	h := &harness{ctl: ctl, backend: backend, clock: clock, metrics: metrics, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialRetries = 1
	return cfg
}

func TestController_InitialLoad(t *testing.T) {
	backend := &fakeBackend{sources: []entity.Source{src("1", entity.StatusIdle, entity.Stats{})}}

	h := startController(t, backend, testConfig())

	require.Eventually(t, h.ctl.Ready, waitFor, pollEvery)
	snap := h.ctl.Snapshot()
	assert.Equal(t, uint64(1), snap.Version)
	require.Len(t, snap.Sources, 1)
	assert.Equal(t, "1", snap.Sources[0].ID)
	assert.False(t, h.ctl.Loading())
	assert.Empty(t, backend.statsCalls(), "nothing running, no stats")

	st := h.ctl.Status()
	assert.True(t, st.Ready)
	assert.Equal(t, h.clock.Now(), st.LastSuccess)
}

func TestController_IdleListRefreshFollowsIdleInterval(t *testing.T) {
	backend := &fakeBackend{sources: []entity.Source{src("1", entity.StatusIdle, nil)}}
	h := startController(t, backend, testConfig())
	require.Eventually(t, h.ctl.Ready, waitFor, pollEvery)

	h.clock.tick(10 * time.Second)
	h.clock.tick(10 * time.Second)
	h.clock.tick(10 * time.Second) // 30s since the initial load

	require.Eventually(t, func() bool { return backend.lists() == 2 }, waitFor, pollEvery)

	h.clock.tick(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, backend.lists())
	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues("none")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues("list")))
}

func TestController_IdleRefreshToleratesClockLag(t *testing.T) {
	backend := &fakeBackend{sources: []entity.Source{src("1", entity.StatusIdle, nil)}}
	clock := newFakeClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	clock.lead = time.Millisecond
	ctl := NewController(backend, testConfig(), WithClock(clock), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctl.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	require.Eventually(t, ctl.Ready, waitFor, pollEvery)

	for i := 0; i < 12; i++ {
		clock.tick(10 * time.Second)
	}

	// The initial load plus one refresh at 30s, 60s, 90s and 120s.
	require.Eventually(t, func() bool { return backend.lists() == 5 }, waitFor, pollEvery)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, backend.lists())
}

func TestController_RunningRefreshesListAndStatsEveryTick(t *testing.T) {
	backend := &fakeBackend{
		sources: []entity.Source{
			src("a", entity.StatusRunning, nil),
			src("b", entity.StatusIdle, nil),
			src("c", entity.StatusStopping, nil),
		},
		stats: map[string]entity.Stats{
			"a": {"pages": int64(120), "rate": 2.0},
			"c": {"pages": int64(7)},
		},
	}
	h := startController(t, backend, testConfig())

	// The initial list contains a running source: stats are fetched at once.
	require.Eventually(t, func() bool { return len(backend.statsCalls()) == 2 }, waitFor, pollEvery)
	require.Eventually(t, func() bool {
		return h.ctl.Snapshot().Sources[0].Stats["rate"] == 2.0
	}, waitFor, pollEvery)
	assert.ElementsMatch(t, []string{"a", "c"}, backend.statsCalls())
	assert.Nil(t, h.ctl.Snapshot().Sources[1].Stats)

	for i := 1; i <= 3; i++ {
		h.clock.tick(10 * time.Second)
		want := i + 1
		require.Eventually(t, func() bool { return backend.lists() == want }, waitFor, pollEvery)
		require.Eventually(t, func() bool { return len(backend.statsCalls()) == 2*want }, waitFor, pollEvery)
	}
	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues("list_and_stats")))
}

func TestController_ReactiveStatsOnTransitionToRunning(t *testing.T) {
	backend := &fakeBackend{
		sources: []entity.Source{src("a", entity.StatusIdle, nil)},
		stats:   map[string]entity.Stats{"a": {"pages": int64(1)}},
	}
	h := startController(t, backend, testConfig())
	require.Eventually(t, h.ctl.Ready, waitFor, pollEvery)

	backend.set(func(b *fakeBackend) { b.sources = []entity.Source{src("a", entity.StatusRunning, nil)} })
	h.ctl.RequestRefresh(true)

	require.Eventually(t, func() bool { return len(backend.statsCalls()) == 1 }, waitFor, pollEvery)

	// Still running on the next refresh: no further reactive fetch.
	h.ctl.RequestRefresh(true)
	require.Eventually(t, func() bool { return backend.lists() == 3 }, waitFor, pollEvery)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, backend.statsCalls(), 1)
}

func TestController_UnchangedListIsNotRepublished(t *testing.T) {
	backend := &fakeBackend{sources: []entity.Source{src("1", entity.StatusIdle, entity.Stats{})}}
	h := startController(t, backend, testConfig())
	require.Eventually(t, h.ctl.Ready, waitFor, pollEvery)
	first := h.ctl.Snapshot()

	h.ctl.RequestRefresh(true)
	require.Eventually(t, func() bool { return backend.lists() == 2 }, waitFor, pollEvery)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.SnapshotChanges.WithLabelValues("unchanged")) == 1
	}, waitFor, pollEvery)

	again := h.ctl.Snapshot()
	assert.Equal(t, first.Version, again.Version)
	assert.Same(t, &first.Sources[0], &again.Sources[0])
}

func TestController_BypassRepublishesIdenticalList(t *testing.T) {
	backend := &fakeBackend{sources: []entity.Source{src("1", entity.StatusIdle, entity.Stats{})}}
	cfg := testConfig()
	cfg.BypassCache = true
	h := startController(t, backend, cfg)
	require.Eventually(t, h.ctl.Ready, waitFor, pollEvery)

	h.ctl.RequestRefresh(true)

	require.Eventually(t, func() bool { return h.ctl.Snapshot().Version == 2 }, waitFor, pollEvery)
	assert.Equal(t, "1", h.ctl.Snapshot().Sources[0].ID)
}

func TestController_ErrorsDoNotStopPolling(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("failed to fetch sources (boom)")}
	h := startController(t, backend, testConfig())

	require.Eventually(t, func() bool { return h.ctl.Status().LastError != "" }, waitFor, pollEvery)
	assert.False(t, h.ctl.Ready())
	assert.Contains(t, h.ctl.Status().LastError, "boom")
	assert.Empty(t, h.ctl.Snapshot().Sources)

	backend.set(func(b *fakeBackend) {
		b.listErr = nil
		b.sources = []entity.Source{src("1", entity.StatusIdle, nil)}
	})
	h.clock.tick(30 * time.Second)

	require.Eventually(t, h.ctl.Ready, waitFor, pollEvery)
	assert.Empty(t, h.ctl.Status().LastError)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.FetchesTotal.WithLabelValues("list", "error")))
}

func TestController_StatsFailuresAreSkipped(t *testing.T) {
	backend := &fakeBackend{
		sources:  []entity.Source{src("a", entity.StatusRunning, nil), src("b", entity.StatusRunning, nil)},
		stats:    map[string]entity.Stats{"b": {"pages": int64(3)}},
		statsErr: map[string]error{"a": errors.New("failed to fetch stats")},
	}
	h := startController(t, backend, testConfig())
	require.Eventually(t, h.ctl.Ready, waitFor, pollEvery)

	require.Eventually(t, func() bool {
		return h.ctl.Snapshot().Sources[1].Stats["pages"] == int64(3)
	}, waitFor, pollEvery)
	assert.Nil(t, h.ctl.Snapshot().Sources[0].Stats)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.StatsFailuresTotal))
}

func TestController_LoadingOnlyForNonSilentRefresh(t *testing.T) {
	backend := &fakeBackend{sources: []entity.Source{src("1", entity.StatusIdle, nil)}}
	h := startController(t, backend, testConfig())
	require.Eventually(t, h.ctl.Ready, waitFor, pollEvery)

	gate := make(chan struct{})
	backend.set(func(b *fakeBackend) { b.gate = gate })

	h.ctl.RequestRefresh(true)
	require.Eventually(t, func() bool { return backend.lists() == 2 }, waitFor, pollEvery)
	assert.False(t, h.ctl.Loading())

	h.ctl.RequestRefresh(false)
	require.Eventually(t, func() bool { return backend.lists() == 3 }, waitFor, pollEvery)
	assert.True(t, h.ctl.Loading())

	close(gate)
	require.Eventually(t, func() bool { return !h.ctl.Loading() }, waitFor, pollEvery)
}

func TestController_WatchLoadingWithoutListChange(t *testing.T) {
	backend := &fakeBackend{sources: []entity.Source{src("1", entity.StatusIdle, nil)}}
	h := startController(t, backend, testConfig())
	require.Eventually(t, h.ctl.Ready, waitFor, pollEvery)

	updates, unsubscribe := h.ctl.Subscribe()
	defer unsubscribe()
	loading, unwatch := h.ctl.WatchLoading()
	defer unwatch()

	gate := make(chan struct{})
	backend.set(func(b *fakeBackend) { b.gate = gate })
	h.ctl.RequestRefresh(false)

	select {
	case v := <-loading:
		assert.True(t, v)
	case <-time.After(waitFor):
		t.Fatal("loading start not reported")
	}

	close(gate)
	select {
	case v := <-loading:
		assert.False(t, v)
	case <-time.After(waitFor):
		t.Fatal("loading end not reported")
	}

	select {
	case snap := <-updates:
		t.Fatalf("unchanged list published snapshot %d", snap.Version)
	default:
	}
}

func TestController_Subscribe(t *testing.T) {
	backend := &fakeBackend{sources: []entity.Source{src("1", entity.StatusIdle, nil)}}
	clock := newFakeClock(time.Now())
	ctl := NewController(backend, testConfig(), WithClock(clock), WithLogger(quietLogger()))
	updates, unsubscribe := ctl.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctl.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	select {
	case snap := <-updates:
		assert.Equal(t, uint64(1), snap.Version)
		assert.Len(t, snap.Sources, 1)
	case <-time.After(waitFor):
		t.Fatal("no snapshot published")
	}

	backend.set(func(b *fakeBackend) {
		b.sources = append(b.sources, src("2", entity.StatusIdle, nil))
	})
	ctl.RequestRefresh(true)

	select {
	case snap := <-updates:
		assert.Equal(t, uint64(2), snap.Version)
		assert.Len(t, snap.Sources, 2)
	case <-time.After(waitFor):
		t.Fatal("no second snapshot published")
	}
}

func TestController_SubscribeKeepsOnlyLatest(t *testing.T) {
	ctl := NewController(&fakeBackend{}, testConfig(), WithLogger(quietLogger()))
	updates, unsubscribe := ctl.Subscribe()

	ctl.publish(Snapshot{Version: 1})
	ctl.publish(Snapshot{Version: 2})

	assert.Equal(t, uint64(2), (<-updates).Version)

	unsubscribe()
	unsubscribe()
	ctl.publish(Snapshot{Version: 3})
	select {
	case <-updates:
		t.Fatal("unsubscribed channel received a snapshot")
	default:
	}
}

func TestController_RequestRefreshMergesPending(t *testing.T) {
	ctl := NewController(&fakeBackend{}, testConfig())

	ctl.RequestRefresh(true)
	ctl.RequestRefresh(false)
	ctl.RequestRefresh(true)

	assert.False(t, <-ctl.refresh, "a merged request is non-silent if any request was")
	select {
	case <-ctl.refresh:
		t.Fatal("requests were not merged")
	default:
	}
}

func TestController_RunReturnsOnCancel(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	ctl := NewController(backend, testConfig(), WithClock(newFakeClock(time.Now())), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctl.Run(ctx) }()

	require.Eventually(t, func() bool { return backend.lists() == 1 }, waitFor, pollEvery)
	assert.True(t, ctl.Loading())
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, ctl.Snapshot().Sources, "late results are discarded")
}

func TestNewController_RepairsConfig(t *testing.T) {
	ctl := NewController(&fakeBackend{}, Config{Interval: 20 * time.Second, IdleInterval: time.Second})

	assert.Equal(t, 20*time.Second, ctl.cfg.Interval)
	assert.Equal(t, 30*time.Second, ctl.cfg.IdleInterval)
	assert.Equal(t, 4, ctl.cfg.StatsConcurrency)
	assert.Equal(t, 5, ctl.cfg.InitialRetries)
}
