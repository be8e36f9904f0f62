package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
)

// ChannelRegistry owns channel records. Each record is replaced atomically;
// readers always observe a complete snapshot and never a partial update.
type ChannelRegistry struct {
	mu      sync.RWMutex
	records map[string]*atomic.Pointer[domain.Channel]
}

// NewChannelRegistry creates an empty channel registry
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{records: make(map[string]*atomic.Pointer[domain.Channel])}
}

// Register adds or replaces a channel definition. Health status belongs to
// the health monitor and metrics to the processor, so both are carried over
// from the existing record and a caller-supplied status is ignored.
func (r *ChannelRegistry) Register(ch *domain.Channel) error {
	if ch == nil || ch.ID == "" {
		return errors.NewValidationError("channel id is required", nil)
	}
	if !ch.Kind.Valid() {
		return errors.NewValidationError(fmt.Sprintf("channel %s: unknown kind %q", ch.ID, ch.Kind), nil)
	}

	def := ch.Clone()
	if def.Name == "" {
		def.Name = def.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ptr, ok := r.records[def.ID]; ok {
		for {
			prev := ptr.Load()
			next := def.Clone()
			next.Status = prev.Status
			next.LastHealthCheck = prev.LastHealthCheck
			next.Metrics = prev.Metrics
			if ptr.CompareAndSwap(prev, next) {
				return nil
			}
		}
	}

	def.Status = domain.HealthStatusHealthy
	def.LastHealthCheck = time.Time{}
	def.Metrics = domain.ChannelMetrics{}
	ptr := &atomic.Pointer[domain.Channel]{}
	ptr.Store(def)
	r.records[def.ID] = ptr
	return nil
}

// Remove deletes a channel definition
func (r *ChannelRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return false
	}
	delete(r.records, id)
	return true
}

func (r *ChannelRegistry) pointer(id string) (*atomic.Pointer[domain.Channel], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ptr, ok := r.records[id]
	return ptr, ok
}

// Get returns a snapshot of the channel. The snapshot must not be mutated.
func (r *ChannelRegistry) Get(id string) (*domain.Channel, bool) {
	ptr, ok := r.pointer(id)
	if !ok {
		return nil, false
	}
	return ptr.Load(), true
}

// List returns snapshots of all channels ordered by id
func (r *ChannelRegistry) List() []*domain.Channel {
	r.mu.RLock()
	out := make([]*domain.Channel, 0, len(r.records))
	for _, ptr := range r.records {
		out = append(out, ptr.Load())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update applies fn to a copy of the record and swaps it in.
// fn may run more than once when writers race on the same record.
func (r *ChannelRegistry) Update(id string, fn func(ch *domain.Channel)) (*domain.Channel, error) {
	ptr, ok := r.pointer(id)
	if !ok {
		return nil, errors.NewNotFoundError("channel not found: "+id, nil)
	}
	for {
		prev := ptr.Load()
		next := prev.Clone()
		fn(next)
		if ptr.CompareAndSwap(prev, next) {
			return next, nil
		}
	}
}

// UpdateMetrics replaces the metrics of a channel
func (r *ChannelRegistry) UpdateMetrics(id string, fn func(m domain.ChannelMetrics) domain.ChannelMetrics) (*domain.Channel, error) {
	return r.Update(id, func(ch *domain.Channel) {
		ch.Metrics = fn(ch.Metrics)
	})
}

// SetStatus records a health check result and reports the previous status
func (r *ChannelRegistry) SetStatus(id string, status domain.HealthStatus, at time.Time) (previous domain.HealthStatus, err error) {
	_, err = r.Update(id, func(ch *domain.Channel) {
		previous = ch.Status
		ch.Status = status
		ch.LastHealthCheck = at
	})
	return previous, err
}

// SetEnabled toggles a channel
func (r *ChannelRegistry) SetEnabled(id string, enabled bool) (*domain.Channel, error) {
	return r.Update(id, func(ch *domain.Channel) {
		ch.Enabled = enabled
	})
}
