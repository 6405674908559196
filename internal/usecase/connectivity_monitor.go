package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/crypto_watch/internal/domain"
	"go.uber.org/zap"
)

type Connectivity string

const (
	ConnectivityChecking     Connectivity = "checking"
	ConnectivityConnected    Connectivity = "connected"
	ConnectivityDisconnected Connectivity = "disconnected"
)

type MonitorConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval: 30 * time.Second,
		Timeout:  3 * time.Second,
	}
}

// ConnectivityMonitor periodically probes the primary backend's health endpoint.
type ConnectivityMonitor struct {
	checker domain.HealthChecker
	cfg     MonitorConfig
	logger  *zap.Logger

	mu        sync.RWMutex
	state     Connectivity
	lastErr   error
	checkedAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConnectivityMonitor(checker domain.HealthChecker, cfg MonitorConfig, logger *zap.Logger) *ConnectivityMonitor {
	def := DefaultMonitorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectivityMonitor{
		checker: checker,
		cfg:     cfg,
		logger:  logger,
		state:   ConnectivityChecking,
	}
}

func (m *ConnectivityMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			m.Check(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *ConnectivityMonitor) Stop(ctx context.Context) error {
	m.mu.RLock()
	cancel := m.cancel
	m.mu.RUnlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check probes once and returns the resulting state.
func (m *ConnectivityMonitor) Check(ctx context.Context) Connectivity {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	err := m.checker.Health(probeCtx)
	if ctx.Err() != nil {
		return m.State()
	}

	next := ConnectivityConnected
	if err != nil {
		next = ConnectivityDisconnected
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	m.lastErr = err
	m.checkedAt = time.Now()
	m.mu.Unlock()

	if prev != next {
		if err != nil {
			m.logger.Warn("Backend unreachable", zap.Error(err))
		} else {
			m.logger.Info("Backend reachable")
		}
	}
	return next
}

func (m *ConnectivityMonitor) State() Connectivity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastError returns the error of the latest probe, nil when it succeeded.
func (m *ConnectivityMonitor) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *ConnectivityMonitor) CheckedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkedAt
}
