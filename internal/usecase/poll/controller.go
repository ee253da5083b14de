package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/observability/logging"
	"crawl-dashboard/internal/resilience/retry"

	"golang.org/x/sync/errgroup"
)

// Backend is the part of the crawl API the controller polls.
type Backend interface {
	ListSources(ctx context.Context) ([]entity.Source, error)
	FetchDerivedStats(ctx context.Context, id string) (entity.Stats, error)
}

// Snapshot is one published source list. Sources is shared between readers
// and must not be modified.
type Snapshot struct {
	Sources   []entity.Source
	Version   uint64
	UpdatedAt time.Time
}

// Running reports whether any source in the snapshot is running.
func (s Snapshot) Running() bool {
	return AnyRunning(s.Sources)
}

// Status summarizes the controller's recent polling outcome.
type Status struct {
	Ready       bool
	Loading     bool
	LastSuccess time.Time
	LastError   string
	LastErrorAt time.Time
}

type listResult struct {
	sources []entity.Source
	err     error
	silent  bool
	elapsed time.Duration
}

type statsResult struct {
	stats   map[string]entity.Stats
	elapsed time.Duration
}

// Controller polls the backend on a fixed tick and publishes the source list.
//
// One goroutine, Run, owns the cache. Fetches run in their own goroutines and
// post results back to Run, which applies them in completion order, so the
// last completed response wins. Readers use Snapshot and Subscribe.
type Controller struct {
	backend Backend
	cfg     Config
	clock   Clock
	logger  *slog.Logger
	metrics *Metrics

	cache           *Cache
	lastListRefresh time.Time

	snapshot atomic.Pointer[Snapshot]
	loading  atomic.Int32
	ready    atomic.Bool

	statusMu sync.Mutex
	status   Status

	refresh chan bool
	lists   chan listResult
	stats   chan statsResult

	snapshots fanout[Snapshot]
	loadings  fanout[bool]
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l
		}
	}
}

// WithMetrics sets the metrics. Without it nothing is recorded.
func WithMetrics(m *Metrics) Option {
	return func(ctl *Controller) {
		ctl.metrics = m
	}
}

// NewController creates a controller. Invalid config fields are replaced by
// their defaults.
func NewController(backend Backend, cfg Config, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.IdleInterval < cfg.Interval {
		cfg.IdleInterval = max(def.IdleInterval, cfg.Interval)
	}
	if cfg.StatsConcurrency < 1 {
		cfg.StatsConcurrency = def.StatsConcurrency
	}
	if cfg.InitialRetries < 1 {
		cfg.InitialRetries = def.InitialRetries
	}

	c := &Controller{
		backend: backend,
		cfg:     cfg,
		clock:   SystemClock{},
		logger:  slog.Default(),
		cache:   NewCache(cfg.BypassCache),
		refresh: make(chan bool, 1),
		lists:   make(chan listResult, 4),
		stats:   make(chan statsResult, 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snapshot.Store(&Snapshot{})
	return c
}

// Snapshot returns the latest published snapshot.
func (c *Controller) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// Sources returns the sources of the latest snapshot.
func (c *Controller) Sources() []entity.Source {
	return c.snapshot.Load().Sources
}

// Loading reports whether a non-silent list refresh is in flight.
func (c *Controller) Loading() bool {
	return c.loading.Load() > 0
}

// Ready reports whether a source list has been loaded at least once.
func (c *Controller) Ready() bool {
	return c.ready.Load()
}

// Status returns the current polling status.
func (c *Controller) Status() Status {
	c.statusMu.Lock()
	st := c.status
	c.statusMu.Unlock()
	st.Ready = c.Ready()
	st.Loading = c.Loading()
	return st
}

// Subscribe returns a channel receiving every newly published snapshot, and
// a func to unsubscribe. The channel holds one snapshot; a slow reader only
// ever sees the latest.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	return c.snapshots.subscribe()
}

// WatchLoading returns a channel receiving the new Loading value each time
// it flips, and a func to unsubscribe. Only the latest value is kept.
func (c *Controller) WatchLoading() (<-chan bool, func()) {
	return c.loadings.subscribe()
}

// RequestRefresh asks for an out-of-band list refresh. A non-silent refresh
// sets Loading while in flight. Requests made while one is pending are merged;
// a merged request is silent only if all of them were.
func (c *Controller) RequestRefresh(silent bool) {
	for {
		select {
		case c.refresh <- silent:
			return
		default:
		}
		select {
		case pending := <-c.refresh:
			silent = silent && pending
		default:
		}
	}
}

// Run polls until ctx is cancelled and returns ctx.Err().
// It starts with a non-silent list load retried with backoff.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("poller started",
		slog.Duration("interval", c.cfg.Interval),
		slog.Duration("idle_interval", c.cfg.IdleInterval),
		slog.Int("stats_concurrency", c.cfg.StatsConcurrency))

	c.startList(ctx, false, c.cfg.InitialRetries, c.clock.Now())

	ticker := c.clock.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("poller stopped")
			return ctx.Err()
		case now := <-ticker.C():
			c.tick(ctx, now)
		case silent := <-c.refresh:
			c.startList(ctx, silent, 1, c.clock.Now())
		case res := <-c.lists:
			c.applyList(ctx, res)
		case res := <-c.stats:
			c.applyStats(ctx, res)
		}
	}
}

func (c *Controller) tick(ctx context.Context, now time.Time) {
	plan := Decide(c.cache.Sources(), c.lastListRefresh, now, c.idleThreshold())
	if c.metrics != nil {
		c.metrics.recordTick(plan)
	}
	c.logger.Debug("poll tick", slog.String("plan", plan.Label()))

	if plan.RefreshList {
		c.startList(ctx, true, 1, now)
	}
	if plan.RefreshStats {
		c.startStats(ctx)
	}
}

// idleThreshold is the idle interval less half a tick, so the lag between a
// tick's time and a later clock read cannot push a due refresh to the next tick.
func (c *Controller) idleThreshold() time.Duration {
	return c.cfg.IdleInterval - c.cfg.Interval/2
}

// startList fetches the list in the background. With attempts > 1 transient
// failures are retried with backoff. at is recorded as the refresh time.
func (c *Controller) startList(ctx context.Context, silent bool, attempts int, at time.Time) {
	c.lastListRefresh = at
	if !silent {
		c.beginLoading()
	}
	go func() {
		start := time.Now()
		var sources []entity.Source
		var err error
		if attempts > 1 {
			err = retry.WithBackoff(logging.WithLogger(ctx, c.logger), retry.InitialLoadConfig(attempts), func() error {
				var ferr error
				sources, ferr = c.backend.ListSources(ctx)
				return ferr
			})
		} else {
			sources, err = c.backend.ListSources(ctx)
		}
		res := listResult{sources: sources, err: err, silent: silent, elapsed: time.Since(start)}
		select {
		case c.lists <- res:
		case <-ctx.Done():
			if !silent {
				c.endLoading()
			}
		}
	}()
}

func (c *Controller) startStats(ctx context.Context) {
	ids := StatsTargets(c.cache.Sources())
	if len(ids) == 0 {
		return
	}
	go func() {
		start := time.Now()
		var mu sync.Mutex
		stats := make(map[string]entity.Stats, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.StatsConcurrency)
		for _, id := range ids {
			g.Go(func() error {
				st, err := c.backend.FetchDerivedStats(gctx, id)
				if err != nil {
					if c.metrics != nil {
						c.metrics.StatsFailuresTotal.Inc()
					}
					c.logger.Warn("failed to refresh stats",
						slog.String("source_id", id),
						slog.Any("error", err))
					return nil
				}
				mu.Lock()
				stats[id] = st
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		select {
		case c.stats <- statsResult{stats: stats, elapsed: time.Since(start)}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) applyList(ctx context.Context, res listResult) {
	if !res.silent {
		c.endLoading()
	}
	if c.metrics != nil {
		c.metrics.recordFetch(kindList, res.err, res.elapsed)
	}
	if res.err != nil {
		c.recordError(res.err)
		c.logger.Error("failed to refresh sources",
			slog.Bool("silent", res.silent),
			slog.Any("error", res.err))
		return
	}
	c.recordSuccess()
	c.apply(ctx, res.sources)
	c.ready.Store(true)
}

func (c *Controller) applyStats(ctx context.Context, res statsResult) {
	var err error
	if len(res.stats) == 0 {
		err = errors.New("no stats fetched")
	}
	if c.metrics != nil {
		c.metrics.recordFetch(kindStats, err, res.elapsed)
	}
	if len(res.stats) == 0 {
		return
	}
	c.apply(ctx, mergeStats(c.cache.Sources(), res.stats))
}

// apply offers sources to the cache, publishes on change and fires the
// reactive stats refresh when the list starts containing a running source.
func (c *Controller) apply(ctx context.Context, sources []entity.Source) {
	wasRunning := AnyRunning(c.cache.Sources())

	current, changed := c.cache.Apply(sources)
	if c.metrics != nil {
		c.metrics.recordApply(changed)
	}
	if !changed {
		return
	}

	prev := c.snapshot.Load()
	snap := &Snapshot{
		Sources:   current,
		Version:   prev.Version + 1,
		UpdatedAt: c.clock.Now(),
	}
	c.snapshot.Store(snap)
	if c.metrics != nil {
		c.metrics.recordSnapshot(*snap)
	}
	c.publish(*snap)

	if !wasRunning && AnyRunning(current) {
		c.logger.Info("crawl started, refreshing stats")
		c.startStats(ctx)
	}
}

func (c *Controller) publish(s Snapshot) {
	c.snapshots.send(s)
}

// beginLoading and endLoading track non-silent list refreshes and notify
// WatchLoading subscribers when Loading flips.
func (c *Controller) beginLoading() {
	if c.loading.Add(1) == 1 {
		c.loadings.send(true)
	}
}

func (c *Controller) endLoading() {
	if c.loading.Add(-1) == 0 {
		c.loadings.send(false)
	}
}

func (c *Controller) recordError(err error) {
	c.statusMu.Lock()
	c.status.LastError = err.Error()
	c.status.LastErrorAt = c.clock.Now()
	c.statusMu.Unlock()
}

func (c *Controller) recordSuccess() {
	c.statusMu.Lock()
	c.status.LastSuccess = c.clock.Now()
	c.status.LastError = ""
	c.status.LastErrorAt = time.Time{}
	c.statusMu.Unlock()
}
