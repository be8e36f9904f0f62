package domain

import "time"

// DeliveryStats is an aggregate view over all known deliveries
type DeliveryStats struct {
	Total           int           `json:"total"`
	Pending         int           `json:"pending"`
	Sent            int           `json:"sent"`
	Delivered       int           `json:"delivered"`
	Failed          int           `json:"failed"`
	Cancelled       int           `json:"cancelled"`
	AvgDeliveryTime time.Duration `json:"avg_delivery_time"`
}

// ChannelHealth is the public health snapshot of one channel
type ChannelHealth struct {
	ChannelID       string         `json:"channel_id"`
	Name            string         `json:"name"`
	Kind            ChannelKind    `json:"kind"`
	Enabled         bool           `json:"enabled"`
	Status          HealthStatus   `json:"status"`
	LastHealthCheck time.Time      `json:"last_health_check"`
	Reliability     float64        `json:"reliability"`
	Metrics         ChannelMetrics `json:"metrics"`
}

// HealthOf builds the health snapshot of c
func HealthOf(c *Channel) ChannelHealth {
	return ChannelHealth{
		ChannelID:       c.ID,
		Name:            c.Name,
		Kind:            c.Kind,
		Enabled:         c.Enabled,
		Status:          c.Status,
		LastHealthCheck: c.LastHealthCheck,
		Reliability:     c.Metrics.Reliability(),
		Metrics:         c.Metrics,
	}
}
