package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/crypto_watch/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type PollPhase string

const (
	PhaseLoading PollPhase = "loading"
	PhaseReady   PollPhase = "ready"
	PhaseFailed  PollPhase = "failed"
)

type PollStatus struct {
	Phase  PollPhase `json:"phase"`
	Reason string    `json:"reason,omitempty"`
}

// PollerState is a consistent copy of everything the poller exposes.
type PollerState struct {
	Snapshot    []domain.MarketEntity `json:"snapshot"`
	Status      PollStatus            `json:"status"`
	Source      string                `json:"source,omitempty"`
	LastUpdated time.Time             `json:"last_updated"`
}

type SnapshotFetcher interface {
	FetchMarketSnapshot(ctx context.Context) (Resolved[[]domain.MarketEntity], error)
}

type PollerConfig struct {
	Interval time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{Interval: 60 * time.Second}
}

// MarketPoller owns the market snapshot. The snapshot is replaced wholesale on
// success and kept as-is when every source fails.
type MarketPoller struct {
	fetcher SnapshotFetcher
	cfg     PollerConfig
	logger  *zap.Logger
	group   singleflight.Group

	mu          sync.RWMutex
	snapshot    []domain.MarketEntity
	index       map[string]int
	status      PollStatus
	source      string
	lastUpdated time.Time
	listeners   []func(PollerState)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timeNow func() time.Time // For testing
}

func NewMarketPoller(fetcher SnapshotFetcher, cfg PollerConfig, logger *zap.Logger) *MarketPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollerConfig().Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketPoller{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		index:   make(map[string]int),
		status:  PollStatus{Phase: PhaseLoading},
		ctx:     context.Background(),
		timeNow: time.Now,
	}
}

// OnUpdate registers a listener called after every status change.
func (p *MarketPoller) OnUpdate(fn func(PollerState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Start refreshes once immediately, then on every interval until Stop or ctx is done.
func (p *MarketPoller) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	loopCtx := p.ctx
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(loopCtx)

	p.logger.Info("Market poller started", zap.Duration("interval", p.cfg.Interval))
}

// Stop cancels the schedule and waits for an in-flight tick to return.
func (p *MarketPoller) Stop(ctx context.Context) error {
	p.mu.RLock()
	cancel := p.cancel
	p.mu.RUnlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Market poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MarketPoller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("Market refresh failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh fetches now. Calls made while a fetch is in flight join it instead
// of starting another one.
func (p *MarketPoller) Refresh(ctx context.Context) error {
	ch := p.group.DoChan("snapshot", func() (interface{}, error) {
		p.mu.RLock()
		fetchCtx := p.ctx
		p.mu.RUnlock()
		return nil, p.fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MarketPoller) fetch(ctx context.Context) error {
	p.mu.Lock()
	p.status = PollStatus{Phase: PhaseLoading}
	p.mu.Unlock()
	p.notify()

	res, err := p.fetcher.FetchMarketSnapshot(ctx)

	p.mu.Lock()
	if err != nil {
		p.status = PollStatus{Phase: PhaseFailed, Reason: err.Error()}
	} else {
		p.snapshot = res.Data
		p.index = make(map[string]int, len(res.Data))
		for i, e := range res.Data {
			p.index[e.ID] = i
		}
		p.source = res.Source
		p.lastUpdated = p.timeNow()
		p.status = PollStatus{Phase: PhaseReady}
	}
	p.mu.Unlock()
	p.notify()

	if err == nil {
		p.logger.Debug("Market snapshot refreshed",
			zap.String("source", res.Source),
			zap.Int("entities", len(res.Data)),
		)
	}
	return err
}

func (p *MarketPoller) notify() {
	p.mu.RLock()
	state := p.stateLocked()
	listeners := make([]func(PollerState), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.RUnlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (p *MarketPoller) stateLocked() PollerState {
	snap := make([]domain.MarketEntity, len(p.snapshot))
	copy(snap, p.snapshot)
	return PollerState{
		Snapshot:    snap,
		Status:      p.status,
		Source:      p.source,
		LastUpdated: p.lastUpdated,
	}
}

func (p *MarketPoller) State() PollerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stateLocked()
}

// CurrentSnapshot returns a copy; empty before the first successful fetch.
func (p *MarketPoller) CurrentSnapshot() []domain.MarketEntity {
	return p.State().Snapshot
}

func (p *MarketPoller) Status() PollStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *MarketPoller) LastUpdated() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastUpdated
}

// Find looks up an entity in the current snapshot.
func (p *MarketPoller) Find(id string) (domain.MarketEntity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.index[id]
	if !ok {
		return domain.MarketEntity{}, false
	}
	return p.snapshot[i], true
}
