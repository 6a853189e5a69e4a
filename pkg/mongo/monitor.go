package mongo

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Monitor supervises a MongoDB connection for the lifetime of the process.
// The driver reconnects on its own; the monitor's job is to detect when the
// deployment is unreachable, back off its probing while the outage lasts,
// and expose the current health so readiness checks can fail fast instead
// of timing out inside request handlers.
type Monitor struct {
	client     *mongo.Client
	log        *slog.Logger
	interval   time.Duration
	maxBackoff time.Duration

	healthy atomic.Bool
}

// NewMonitor creates a Monitor from the connection config. The returned
// monitor reports healthy until Run observes a failed probe.
func NewMonitor(client *mongo.Client, cfg Config, log *slog.Logger) *Monitor {
	m := &Monitor{
		client:     client,
		log:        log,
		interval:   cfg.MonitorInterval,
		maxBackoff: cfg.MonitorMaxBackoff,
	}
	if m.interval <= 0 {
		m.interval = 15 * time.Second
	}
	if m.maxBackoff < m.interval {
		m.maxBackoff = m.interval
	}
	m.healthy.Store(true)
	return m
}

// Healthy reports the result of the most recent probe.
func (m *Monitor) Healthy() bool {
	return m.healthy.Load()
}

// Run probes the deployment until ctx is canceled. While probes succeed it
// ticks at the configured interval; after a failure the delay doubles up to
// the configured cap, so a long outage does not hammer the deployment.
func (m *Monitor) Run(ctx context.Context) error {
	delay := m.interval
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		pingCtx, cancel := context.WithTimeout(ctx, m.interval)
		err := m.client.Ping(pingCtx, nil)
		cancel()

		if err != nil {
			if m.healthy.CompareAndSwap(true, false) {
				m.log.ErrorContext(ctx, "mongo connection lost", slog.Any("error", err))
			}
			delay = min(delay*2, m.maxBackoff)
			continue
		}

		if m.healthy.CompareAndSwap(false, true) {
			m.log.InfoContext(ctx, "mongo connection restored")
		}
		delay = m.interval
	}
}
