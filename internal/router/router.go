package router

import (
	"sort"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/registry"
)

// Router picks delivery channels for a recipient by priority
type Router struct {
	channels *registry.ChannelRegistry
}

// New creates a router over the channel registry
func New(channels *registry.ChannelRegistry) *Router {
	return &Router{channels: channels}
}

// SelectChannels narrows the rule's channels to enabled, not-down channels
// the recipient prefers, then orders and trims them by priority:
//
//	critical     all survivors by descending reliability
//	high         two fastest by running-average delivery time
//	medium, low  the single cheapest by channel cost class
//
// A recipient without preferred channels accepts every rule channel.
func (r *Router) SelectChannels(ruleChannels []string, recipient *domain.Recipient, priority domain.Priority) []*domain.Channel {
	var preferred map[string]bool
	if recipient != nil && len(recipient.Preferences.Channels) > 0 {
		preferred = make(map[string]bool, len(recipient.Preferences.Channels))
		for _, id := range recipient.Preferences.Channels {
			preferred[id] = true
		}
	}

	seen := make(map[string]bool, len(ruleChannels))
	candidates := make([]*domain.Channel, 0, len(ruleChannels))
	for _, id := range ruleChannels {
		if seen[id] {
			continue
		}
		seen[id] = true

		ch, ok := r.channels.Get(id)
		if !ok || !ch.Enabled || ch.Status == domain.HealthStatusDown {
			continue
		}
		if preferred != nil && !preferred[id] {
			continue
		}
		candidates = append(candidates, ch)
	}

	switch priority {
	case domain.PriorityCritical:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Metrics.Reliability() > candidates[j].Metrics.Reliability()
		})
		return candidates
	case domain.PriorityHigh:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Metrics.AvgDeliveryTime < candidates[j].Metrics.AvgDeliveryTime
		})
		return limit(candidates, 2)
	default:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Kind.CostClass() < candidates[j].Kind.CostClass()
		})
		return limit(candidates, 1)
	}
}

func limit(chs []*domain.Channel, n int) []*domain.Channel {
	if len(chs) > n {
		return chs[:n]
	}
	return chs
}
