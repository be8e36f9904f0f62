package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/registry"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/telemetry"
)

// Prober checks whether a channel's provider is reachable
type Prober interface {
	Probe(ctx context.Context, channel *domain.Channel) error
}

// Config tunes the monitor
type Config struct {
	ProbeTimeout     time.Duration
	FailureThreshold float64
	MinSamples       int
	FailureWindow    time.Duration
	// Concurrency caps probes in flight
	Concurrency int
}

func (c Config) withDefaults() Config {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 0.5
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 1
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = 5 * time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Monitor is the only writer of channel health status
type Monitor struct {
	channels *registry.ChannelRegistry
	prober   Prober
	bus      *telemetry.Bus
	log      *logger.Logger
	cfg      Config
	now      func() time.Time
}

// NewMonitor creates a health monitor
func NewMonitor(channels *registry.ChannelRegistry, prober Prober, bus *telemetry.Bus, cfg Config, now func() time.Time, log *logger.Logger) *Monitor {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Monitor{
		channels: channels,
		prober:   prober,
		bus:      bus,
		log:      log,
		cfg:      cfg.withDefaults(),
		now:      now,
	}
}

// ProbeAll checks every enabled channel once and returns the transitions
func (m *Monitor) ProbeAll(ctx context.Context) []domain.ChannelHealthChange {
	var (
		mu      sync.Mutex
		changes []domain.ChannelHealthChange
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for _, ch := range m.channels.List() {
		if !ch.Enabled {
			continue
		}
		ch := ch
		g.Go(func() error {
			if change, ok := m.check(gctx, ch); ok {
				mu.Lock()
				changes = append(changes, change)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return changes
}

// check probes one channel and records the resulting status
func (m *Monitor) check(ctx context.Context, ch *domain.Channel) (domain.ChannelHealthChange, bool) {
	status := m.evaluate(ctx, ch)
	at := m.now()

	previous, err := m.channels.SetStatus(ch.ID, status, at)
	if err != nil {
		// Removed while probing
		return domain.ChannelHealthChange{}, false
	}
	if previous == status {
		return domain.ChannelHealthChange{}, false
	}

	change := domain.ChannelHealthChange{ChannelID: ch.ID, Previous: previous, Current: status, At: at}
	if current, ok := m.channels.Get(ch.ID); ok {
		change.Channel = current.Redacted()
	}
	m.log.Info("Channel health changed", "channel_id", ch.ID, "previous", previous, "current", status)
	if m.bus != nil {
		m.bus.Publish(telemetry.ChannelHealthChanged, change)
	}
	return change, true
}

func (m *Monitor) evaluate(ctx context.Context, ch *domain.Channel) domain.HealthStatus {
	rate, samples := ch.Metrics.RecentFailureRate(m.now(), m.cfg.FailureWindow)
	if samples >= m.cfg.MinSamples && rate > m.cfg.FailureThreshold {
		return domain.HealthStatusDown
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	if err := m.prober.Probe(probeCtx, ch); err != nil {
		m.log.Warn("Channel probe failed", "channel_id", ch.ID, "error", err)
		return domain.HealthStatusDown
	}
	return domain.HealthStatusHealthy
}

// Run probes immediately and then every interval until ctx is done
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.ProbeAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}
