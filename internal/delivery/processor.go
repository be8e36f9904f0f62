package delivery

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/registry"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/telemetry"
)

// Sender performs the transport call for a delivery
type Sender interface {
	Send(ctx context.Context, channel *domain.Channel, d *domain.Delivery) error
}

// ProcessorConfig tunes the processor
type ProcessorConfig struct {
	BatchSize         int
	CircuitThreshold  float64
	CircuitMinSamples int
	FailureWindow     time.Duration
	// RecentLimit caps the outcomes kept per channel for the failure rate
	RecentLimit int
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.CircuitThreshold <= 0 {
		c.CircuitThreshold = 0.5
	}
	if c.CircuitMinSamples <= 0 {
		c.CircuitMinSamples = 5
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = 5 * time.Minute
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = 100
	}
	return c
}

type channelLimiter struct {
	limit   domain.RateLimit
	limiter *rate.Limiter
}

// Processor owns deliveries from creation to a terminal state
type Processor struct {
	channels *registry.ChannelRegistry
	sender   Sender
	bus      *telemetry.Bus
	log      *logger.Logger
	cfg      ProcessorConfig
	now      func() time.Time

	mu         sync.Mutex
	deliveries map[string]*domain.Delivery
	queue      *DueQueue

	limitersMu sync.Mutex
	limiters   map[string]*channelLimiter
}

// NewProcessor creates a processor
func NewProcessor(channels *registry.ChannelRegistry, sender Sender, bus *telemetry.Bus, cfg ProcessorConfig, now func() time.Time, log *logger.Logger) *Processor {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		channels:   channels,
		sender:     sender,
		bus:        bus,
		log:        log,
		cfg:        cfg.withDefaults(),
		now:        now,
		deliveries: make(map[string]*domain.Delivery),
		queue:      NewDueQueue(),
		limiters:   make(map[string]*channelLimiter),
	}
}

// Enqueue takes ownership of a new delivery
func (p *Processor) Enqueue(d *domain.Delivery) error {
	if d == nil || d.ID == "" {
		return errors.NewValidationError("delivery id is required", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.deliveries[d.ID]; exists {
		return errors.NewConflictError("delivery already exists: "+d.ID, nil)
	}
	owned := d.Clone()
	p.deliveries[owned.ID] = owned
	if !owned.Terminal() {
		p.queue.Push(owned.ID, owned.ScheduledAt, owned.Priority.Weight())
	}
	return nil
}

// Requeue enqueues a fresh pending copy of a finished delivery under newID
func (p *Processor) Requeue(d *domain.Delivery, newID string) (*domain.Delivery, error) {
	now := p.now()
	fresh := &domain.Delivery{
		ID:             newID,
		NotificationID: d.NotificationID,
		RuleID:         d.RuleID,
		RecipientID:    d.RecipientID,
		ChannelID:      d.ChannelID,
		ChannelKind:    d.ChannelKind,
		Address:        d.Address,
		Priority:       d.Priority,
		Status:         domain.DeliveryStatusPending,
		MaxAttempts:    d.MaxAttempts,
		ScheduledAt:    now,
		Content:        d.Content.Clone(),
		CreatedAt:      now,
	}
	if fresh.MaxAttempts <= 0 {
		fresh.MaxAttempts = DefaultMaxAttempts
	}
	if err := p.Enqueue(fresh); err != nil {
		return nil, err
	}
	return fresh.Clone(), nil
}

// Get returns a snapshot of the delivery
func (p *Processor) Get(id string) (*domain.Delivery, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.deliveries[id]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// List returns snapshots of deliveries, optionally filtered by status,
// ordered by creation time.
func (p *Processor) List(status domain.DeliveryStatus) []*domain.Delivery {
	p.mu.Lock()
	out := make([]*domain.Delivery, 0, len(p.deliveries))
	for _, d := range p.deliveries {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d.Clone())
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats aggregates delivery counts. The average covers delivered ones.
func (p *Processor) Stats() domain.DeliveryStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var stats domain.DeliveryStats
	var total time.Duration
	for _, d := range p.deliveries {
		stats.Total++
		switch d.Status {
		case domain.DeliveryStatusPending:
			stats.Pending++
		case domain.DeliveryStatusSent:
			stats.Sent++
		case domain.DeliveryStatusDelivered:
			stats.Delivered++
			total += d.ResponseTime
		case domain.DeliveryStatusFailed:
			stats.Failed++
		case domain.DeliveryStatusCancelled:
			stats.Cancelled++
		}
	}
	if stats.Delivered > 0 {
		stats.AvgDeliveryTime = total / time.Duration(stats.Delivered)
	}
	return stats
}

// Cancel moves a waiting delivery to cancelled. Cancelling an already
// cancelled delivery is a no-op; in-flight and finished ones cannot be.
func (p *Processor) Cancel(id string) (*domain.Delivery, error) {
	p.mu.Lock()
	d, ok := p.deliveries[id]
	if !ok {
		p.mu.Unlock()
		return nil, errors.NewNotFoundError("delivery not found: "+id, nil)
	}
	if d.Status == domain.DeliveryStatusCancelled {
		snapshot := d.Clone()
		p.mu.Unlock()
		return snapshot, nil
	}
	if d.Status == domain.DeliveryStatusSent || d.Terminal() {
		status := d.Status
		p.mu.Unlock()
		return nil, errors.NewConflictError("delivery cannot be cancelled in status "+string(status), nil)
	}

	now := p.now()
	d.Status = domain.DeliveryStatusCancelled
	d.CancelledAt = &now
	p.queue.Remove(id)
	snapshot := d.Clone()
	p.mu.Unlock()

	p.emit(snapshot)
	return snapshot, nil
}

// Pending returns the number of deliveries waiting in the queue
func (p *Processor) Pending() int {
	return p.queue.Len()
}

// Run ticks every interval until ctx is done
func (p *Processor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick processes every due delivery in batches of BatchSize. A batch
// finishes completely before the next one starts. It returns the number
// of deliveries taken from the queue.
func (p *Processor) Tick(ctx context.Context) int {
	due := p.queue.PopDue(p.now())

	for start := 0; start < len(due); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(due) {
			end = len(due)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range due[start:end] {
			id := id
			g.Go(func() error {
				p.process(gctx, id)
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			// Put back what this tick did not reach
			p.requeueIDs(due[end:])
			break
		}
	}
	return len(due)
}

func (p *Processor) requeueIDs(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if d, ok := p.deliveries[id]; ok && !d.Terminal() {
			p.queue.Push(id, d.ScheduledAt, d.Priority.Weight())
		}
	}
}

func (p *Processor) process(ctx context.Context, id string) {
	now := p.now()

	p.mu.Lock()
	d, ok := p.deliveries[id]
	if !ok || d.Terminal() || d.Status == domain.DeliveryStatusSent {
		p.mu.Unlock()
		return
	}
	// A failed delivery with attempts left is due for its retry
	d.Status = domain.DeliveryStatusPending

	ch, found := p.channels.Get(d.ChannelID)
	if !found {
		d.Status = domain.DeliveryStatusFailed
		d.FailedAt = &now
		d.LastError = "channel not found: " + d.ChannelID
		// Nothing to retry through
		d.MaxAttempts = d.Attempts
		snapshot := d.Clone()
		p.mu.Unlock()

		p.log.Error("Delivery channel missing", "delivery_id", id, "channel_id", snapshot.ChannelID)
		p.emit(snapshot)
		return
	}

	if reason := p.capacityBlock(ch, now); reason != "" {
		d.Deferrals++
		d.ScheduledAt = now.Add(DeferralBackoff(d.Deferrals))
		p.queue.Push(d.ID, d.ScheduledAt, d.Priority.Weight())
		p.mu.Unlock()

		p.log.Debug("Delivery deferred", "delivery_id", id, "channel_id", ch.ID, "reason", reason)
		return
	}

	d.Attempts++
	d.Status = domain.DeliveryStatusSent
	if d.SentAt == nil {
		d.SentAt = &now
	}
	attempt := d.Clone()
	p.mu.Unlock()

	sendCtx := ctx
	if ch.Config.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, ch.Config.Timeout)
		defer cancel()
	}

	started := time.Now()
	sendErr := p.sender.Send(sendCtx, ch, attempt)
	elapsed := time.Since(started)
	finished := p.now()

	p.recordOutcome(ch.ID, sendErr == nil, elapsed, finished)

	p.mu.Lock()
	if sendErr == nil {
		d.Status = domain.DeliveryStatusDelivered
		d.DeliveredAt = &finished
		d.ResponseTime = elapsed
		d.LastError = ""
	} else {
		d.Status = domain.DeliveryStatusFailed
		d.FailedAt = &finished
		d.LastError = sendErr.Error()
		record := domain.RetryRecord{Attempt: d.Attempts, Error: d.LastError, FailedAt: finished}
		if d.Attempts < d.MaxAttempts {
			d.ScheduledAt = finished.Add(RetryBackoff(d.Attempts))
			record.NextAttemptAt = d.ScheduledAt
			p.queue.Push(d.ID, d.ScheduledAt, d.Priority.Weight())
		}
		d.RetryHistory = append(d.RetryHistory, record)
	}
	snapshot := d.Clone()
	p.mu.Unlock()

	if sendErr != nil {
		p.log.Warn("Delivery attempt failed",
			"delivery_id", id,
			"channel_id", ch.ID,
			"attempt", snapshot.Attempts,
			"max_attempts", snapshot.MaxAttempts,
			"error", sendErr,
		)
	}
	p.emit(snapshot)
}

// capacityBlock returns why the channel cannot take a send right now
func (p *Processor) capacityBlock(ch *domain.Channel, now time.Time) string {
	if ch.Status == domain.HealthStatusDown {
		return "circuit open: channel down"
	}
	failureRate, samples := ch.Metrics.RecentFailureRate(now, p.cfg.FailureWindow)
	if samples >= p.cfg.CircuitMinSamples && failureRate > p.cfg.CircuitThreshold {
		return "circuit open: failure rate exceeded"
	}
	if lim := p.limiter(ch); lim != nil && !lim.AllowN(now, 1) {
		return "rate limit exceeded"
	}
	return ""
}

func (p *Processor) limiter(ch *domain.Channel) *rate.Limiter {
	cfg := ch.Config.RateLimit
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return nil
	}

	p.limitersMu.Lock()
	defer p.limitersMu.Unlock()

	entry, ok := p.limiters[ch.ID]
	if !ok || entry.limit != cfg {
		entry = &channelLimiter{
			limit:   cfg,
			limiter: rate.NewLimiter(rate.Every(cfg.Window/time.Duration(cfg.Requests)), cfg.Requests),
		}
		p.limiters[ch.ID] = entry
	}
	return entry.limiter
}

func (p *Processor) recordOutcome(channelID string, delivered bool, elapsed time.Duration, at time.Time) {
	_, err := p.channels.UpdateMetrics(channelID, func(m domain.ChannelMetrics) domain.ChannelMetrics {
		m.Sent++
		if delivered {
			m.Delivered++
			if m.AvgDeliveryTime == 0 {
				m.AvgDeliveryTime = elapsed
			} else {
				m.AvgDeliveryTime = (m.AvgDeliveryTime + elapsed) / 2
			}
		} else {
			m.Failed++
		}
		return m.WithOutcome(domain.Outcome{At: at, Failed: !delivered}, p.cfg.FailureWindow, p.cfg.RecentLimit)
	})
	if err != nil {
		// Channel removed while the send was in flight
		p.log.Warn("Failed to record channel metrics", "channel_id", channelID, "error", err)
	}
}

func (p *Processor) emit(d *domain.Delivery) {
	if p.bus != nil {
		p.bus.Publish(telemetry.DeliveryUpdated, d)
	}
}
