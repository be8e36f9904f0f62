package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/telemetry"
)

var (
	// EventsProcessed tracks processed notification events
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_events_processed_total",
			Help: "Total number of notification events processed",
		},
		[]string{"event_type", "outcome"},
	)

	// RulesMatched tracks rules that matched an event
	RulesMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_rules_matched_total",
			Help: "Total number of rule matches",
		},
		[]string{"event_type"},
	)

	// DeliveryUpdates tracks delivery outcomes by channel kind and status
	DeliveryUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_delivery_updates_total",
			Help: "Total number of delivery state changes",
		},
		[]string{"channel_kind", "status"},
	)

	// DeliveryDuration tracks transport response time of delivered messages
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_engine_delivery_duration_seconds",
			Help:    "Transport response time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel_kind"},
	)

	// DeliveryQueueSize tracks deliveries waiting for a tick
	DeliveryQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_engine_delivery_queue_size",
			Help: "Current number of deliveries waiting in the due queue",
		},
	)

	// ChannelStatus is 1 for the channel's current status and 0 otherwise
	ChannelStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_engine_channel_status",
			Help: "Channel health status (1 for the current status)",
		},
		[]string{"channel_id", "status"},
	)

	// DeadLettered tracks deliveries that exhausted their attempts
	DeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_dead_lettered_total",
			Help: "Total number of deliveries moved to the dead letter queue",
		},
		[]string{"channel_kind"},
	)

	// RateLimitExceeded tracks API rate limit violations
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"source"},
	)

	// ConsumerRestarts tracks event consumer restart events
	ConsumerRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_engine_consumer_restarts_total",
			Help: "Total number of event consumer restarts",
		},
	)

	// OutboxRelayed tracks telemetry events relayed to the broker
	OutboxRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_outbox_relayed_total",
			Help: "Total number of outbox events relayed",
		},
		[]string{"event_type", "outcome"},
	)
)

var healthStatuses = []domain.HealthStatus{
	domain.HealthStatusHealthy,
	domain.HealthStatusDegraded,
	domain.HealthStatusDown,
}

// SetChannelStatus marks status as the current one for channelID
func SetChannelStatus(channelID string, status domain.HealthStatus) {
	for _, s := range healthStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		ChannelStatus.WithLabelValues(channelID, string(s)).Set(v)
	}
}

// Observe feeds the collectors from telemetry. queued reports the current
// queue length and may be nil.
func Observe(bus *telemetry.Bus, queued func() int) (stop func()) {
	unsubs := []func(){
		bus.Subscribe(telemetry.NotificationProcessed, func(e telemetry.Event) {
			p, ok := e.Data.(domain.NotificationProcessed)
			if !ok {
				return
			}
			outcome := "ok"
			if p.Error != "" {
				outcome = "error"
			}
			EventsProcessed.WithLabelValues(p.EventType, outcome).Inc()
			RulesMatched.WithLabelValues(p.EventType).Add(float64(p.RulesMatched))
		}),
		bus.Subscribe(telemetry.DeliveryUpdated, func(e telemetry.Event) {
			d, ok := e.Data.(*domain.Delivery)
			if !ok {
				return
			}
			kind := string(d.ChannelKind)
			DeliveryUpdates.WithLabelValues(kind, string(d.Status)).Inc()
			switch {
			case d.Status == domain.DeliveryStatusDelivered:
				DeliveryDuration.WithLabelValues(kind).Observe(d.ResponseTime.Seconds())
			case d.Status == domain.DeliveryStatusFailed && d.Terminal():
				DeadLettered.WithLabelValues(kind).Inc()
			}
			if queued != nil {
				DeliveryQueueSize.Set(float64(queued()))
			}
		}),
		bus.Subscribe(telemetry.ChannelHealthChanged, func(e telemetry.Event) {
			c, ok := e.Data.(domain.ChannelHealthChange)
			if !ok {
				return
			}
			SetChannelStatus(c.ChannelID, c.Current)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
