package healthmon

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Source is the subset of registry.Registry the monitor depends on, kept
// as an interface so tests can supply a fake without a real Registry.
type Source interface {
	LivenessSweep(threshold time.Duration) []string
	MarkUnhealthy(nodeID string)
}

// Monitor runs a background ticker that sweeps for nodes whose heartbeat
// has lapsed past threshold and marks them unhealthy, invoking onUnhealthy
// for each newly-detected failure.
type Monitor struct {
	source      Source
	interval    time.Duration
	threshold   time.Duration
	onUnhealthy func(nodeID string)
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Monitor. interval is how often the sweep runs (~10s);
// threshold is how long a node may go without a heartbeat before it is
// marked unhealthy (~30s).
func New(source Source, interval, threshold time.Duration, logger zerolog.Logger) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		source:    source,
		interval:  interval,
		threshold: threshold,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetOnUnhealthy installs a callback invoked (in its own goroutine, so it
// never blocks the sweep loop) for each node newly marked unhealthy.
func (m *Monitor) SetOnUnhealthy(callback func(nodeID string)) {
	m.onUnhealthy = callback
}

// Start runs the sweep loop until Stop is called or ctx is canceled.
// Intended to be run in its own goroutine.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	if ctx == nil {
		ctx = m.ctx
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.interval).Dur("threshold", m.threshold).Msg("health monitor started")

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-ctx.Done():
			m.logger.Info().Msg("health monitor stopping: context canceled")
			return
		case <-m.ctx.Done():
			m.logger.Info().Msg("health monitor stopping: internal cancellation")
			return
		}
	}
}

// Stop cancels the sweep loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) sweep() {
	stale := m.source.LivenessSweep(m.threshold)
	for _, nodeID := range stale {
		m.source.MarkUnhealthy(nodeID)
		m.logger.Warn().Str("node_id", nodeID).Dur("threshold", m.threshold).Msg("node marked unhealthy: heartbeat lapsed")
		if m.onUnhealthy != nil {
			go m.onUnhealthy(nodeID)
		}
	}
}
