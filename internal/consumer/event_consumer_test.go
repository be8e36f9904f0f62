package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/metrics"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/shared/rabbitmq"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (f *fakeSubmitter) SubmitEvent(ctx context.Context, event domain.NotificationEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type fakeAcknowledger struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeBroker struct {
	batches [][]rabbitmq.Message
	cancel  context.CancelFunc
	calls   int
	setup   []string
}

func (b *fakeBroker) Setup(exchange, queue, routingKey string) error {
	b.setup = []string{exchange, queue, routingKey}
	return nil
}

func (b *fakeBroker) Consume(ctx context.Context, queue, tag string, prefetch int) (<-chan rabbitmq.Message, error) {
	out := make(chan rabbitmq.Message, 8)
	if b.calls < len(b.batches) {
		for _, m := range b.batches[b.calls] {
			out <- m
		}
	} else {
		b.cancel()
	}
	b.calls++
	close(out)
	return out, nil
}

func message(ack amqp.Acknowledger, tag uint64, body string) rabbitmq.Message {
	return rabbitmq.NewMessage(amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		RoutingKey:   "event.payroll",
		Body:         []byte(body),
	})
}

func TestEventConsumer_Handle(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		want       bool
		wantSource string
	}{
		{"valid event", `{"type":"payroll_processed","source":"payroll-service","data":{"employeeId":"e1"}}`, true, "payroll-service"},
		{"source falls back to routing key", `{"type":"payroll_processed"}`, true, "event.payroll"},
		{"malformed json", `{"type":`, false, ""},
		{"missing type", `{"source":"hr"}`, false, ""},
		{"invalid priority", `{"type":"x","priority":"urgent"}`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			c := NewEventConsumer(&fakeBroker{}, sub, Config{}, logger.NewNop())

			got := c.Handle(context.Background(), []byte(tt.body), "event.payroll")
			assert.Equal(t, tt.want, got)
			if tt.want {
				require.Len(t, sub.events, 1)
				assert.Equal(t, tt.wantSource, sub.events[0].Source)
			} else {
				assert.Empty(t, sub.events)
			}
		})
	}
}

func TestEventConsumer_RunAcksAndRestarts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ack := &fakeAcknowledger{}
	broker := &fakeBroker{
		cancel: cancel,
		batches: [][]rabbitmq.Message{{
			message(ack, 1, `{"type":"document_expiry_check","data":{"daysRemaining":3}}`),
			message(ack, 2, `not json`),
		}},
	}
	sub := &fakeSubmitter{}
	c := NewEventConsumer(broker, sub, Config{Exchange: "notifications", Queue: "events", RoutingKey: "event.*"}, logger.NewNop())
	c.restartDelay = time.Millisecond
	before := testutil.ToFloat64(metrics.ConsumerRestarts)

	require.NoError(t, c.Run(ctx))

	assert.Equal(t, []string{"notifications", "events", "event.*"}, broker.setup)
	assert.Equal(t, 2, broker.calls)
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.nacked)
	require.Len(t, sub.events, 1)
	assert.Equal(t, domain.EventTypeDocumentExpiryCheck, sub.events[0].Type)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ConsumerRestarts))
}
