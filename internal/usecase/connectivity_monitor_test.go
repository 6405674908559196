package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_watch/internal/domain"
)

type fakeHealth struct {
	mu    sync.Mutex
	err   error
	block bool
	calls atomic.Int32
}

func (f *fakeHealth) Health(ctx context.Context) error {
	f.calls.Add(1)
	f.mu.Lock()
	err, block := f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func TestConnectivityMonitor_Transitions(t *testing.T) {
	h := &fakeHealth{}
	m := NewConnectivityMonitor(h, MonitorConfig{}, nil)
	ctx := context.Background()

	assert.Equal(t, ConnectivityChecking, m.State())
	assert.Equal(t, DefaultMonitorConfig(), m.cfg)

	assert.Equal(t, ConnectivityConnected, m.Check(ctx))
	assert.NoError(t, m.LastError())
	assert.False(t, m.CheckedAt().IsZero())

	h.mu.Lock()
	h.err = domain.ErrTransport
	h.mu.Unlock()
	assert.Equal(t, ConnectivityDisconnected, m.Check(ctx))
	assert.ErrorIs(t, m.LastError(), domain.ErrTransport)
}

func TestConnectivityMonitor_ProbeTimeout(t *testing.T) {
	h := &fakeHealth{block: true}
	m := NewConnectivityMonitor(h, MonitorConfig{Interval: time.Hour, Timeout: 10 * time.Millisecond}, nil)

	assert.Equal(t, ConnectivityDisconnected, m.Check(context.Background()))
}

func TestConnectivityMonitor_StartStop(t *testing.T) {
	h := &fakeHealth{}
	m := NewConnectivityMonitor(h, MonitorConfig{Interval: 10 * time.Millisecond, Timeout: time.Second}, nil)

	m.Start(context.Background())
	require.Eventually(t, func() bool { return h.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	assert.Equal(t, ConnectivityConnected, m.State())
}
