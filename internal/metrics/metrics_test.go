package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/telemetry"
)

func TestObserve(t *testing.T) {
	bus := telemetry.NewBus(logger.NewNop())
	stop := Observe(bus, func() int { return 7 })

	processed := EventsProcessed.WithLabelValues("metrics_test_event", "ok")
	matched := RulesMatched.WithLabelValues("metrics_test_event")
	delivered := DeliveryUpdates.WithLabelValues("webhook", "delivered")
	dead := DeadLettered.WithLabelValues("webhook")

	beforeProcessed := testutil.ToFloat64(processed)
	beforeMatched := testutil.ToFloat64(matched)
	beforeDelivered := testutil.ToFloat64(delivered)
	beforeDead := testutil.ToFloat64(dead)

	bus.Publish(telemetry.NotificationProcessed, domain.NotificationProcessed{EventType: "metrics_test_event", RulesMatched: 2})
	bus.Publish(telemetry.DeliveryUpdated, &domain.Delivery{
		ChannelKind: domain.ChannelKindWebhook, Status: domain.DeliveryStatusDelivered, ResponseTime: 20 * time.Millisecond,
	})
	bus.Publish(telemetry.DeliveryUpdated, &domain.Delivery{
		ChannelKind: domain.ChannelKindWebhook, Status: domain.DeliveryStatusFailed, Attempts: 3, MaxAttempts: 3,
	})
	bus.Publish(telemetry.ChannelHealthChanged, domain.ChannelHealthChange{
		ChannelID: "metrics_test_channel", Previous: domain.HealthStatusHealthy, Current: domain.HealthStatusDown,
	})

	assert.Equal(t, beforeProcessed+1, testutil.ToFloat64(processed))
	assert.Equal(t, beforeMatched+2, testutil.ToFloat64(matched))
	assert.Equal(t, beforeDelivered+1, testutil.ToFloat64(delivered))
	assert.Equal(t, beforeDead+1, testutil.ToFloat64(dead))
	assert.Equal(t, 7.0, testutil.ToFloat64(DeliveryQueueSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(ChannelStatus.WithLabelValues("metrics_test_channel", "down")))
	assert.Equal(t, 0.0, testutil.ToFloat64(ChannelStatus.WithLabelValues("metrics_test_channel", "healthy")))

	stop()
	assert.Equal(t, 0, bus.ListenerCount(telemetry.DeliveryUpdated))
}
