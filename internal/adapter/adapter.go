package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// Transport delivers rendered content through one kind of channel
type Transport interface {
	Kind() domain.ChannelKind
	Send(ctx context.Context, channel *domain.Channel, d *domain.Delivery) error
	// Probe reports whether the provider behind channel is reachable
	Probe(ctx context.Context, channel *domain.Channel) error
}

// Registry dispatches to the transport registered for a channel kind
type Registry struct {
	mu         sync.RWMutex
	transports map[domain.ChannelKind]Transport
}

// NewRegistry creates a registry holding transports
func NewRegistry(transports ...Transport) *Registry {
	r := &Registry{transports: make(map[domain.ChannelKind]Transport)}
	for _, t := range transports {
		r.Register(t)
	}
	return r
}

// Register adds or replaces the transport for its kind
func (r *Registry) Register(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[t.Kind()] = t
}

// Get returns the transport for kind
func (r *Registry) Get(kind domain.ChannelKind) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[kind]
	return t, ok
}

// Send delivers d through the transport for the channel's kind
func (r *Registry) Send(ctx context.Context, channel *domain.Channel, d *domain.Delivery) error {
	t, ok := r.Get(channel.Kind)
	if !ok {
		return fmt.Errorf("no transport for channel kind %s", channel.Kind)
	}
	return t.Send(ctx, channel, d)
}

// Probe checks the provider of the channel
func (r *Registry) Probe(ctx context.Context, channel *domain.Channel) error {
	t, ok := r.Get(channel.Kind)
	if !ok {
		return fmt.Errorf("no transport for channel kind %s", channel.Kind)
	}
	return t.Probe(ctx, channel)
}

func requireAddress(d *domain.Delivery) error {
	if d.Address == "" {
		return fmt.Errorf("recipient %s has no %s address", d.RecipientID, d.ChannelKind)
	}
	return nil
}
