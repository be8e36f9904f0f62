package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/telemetry"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeTransport struct {
	mu     sync.Mutex
	sent   []*domain.Delivery
	failOn map[string]bool
}

func (f *fakeTransport) Send(ctx context.Context, ch *domain.Channel, d *domain.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, d)
	if f.failOn[ch.ID] {
		return fmt.Errorf("%s rejected the message", ch.ID)
	}
	return nil
}

func (f *fakeTransport) Probe(ctx context.Context, ch *domain.Channel) error {
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events map[string][]telemetry.Event
}

func record(e *Engine, names ...string) *recorder {
	r := &recorder{events: make(map[string][]telemetry.Event)}
	for _, name := range names {
		e.Subscribe(name, func(ev telemetry.Event) {
			r.mu.Lock()
			r.events[ev.Name] = append(r.events[ev.Name], ev)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[name])
}

func newTestEngine(t *testing.T, transport *fakeTransport) *Engine {
	t.Helper()
	e := New(Dependencies{
		Sender: transport,
		Prober: transport,
		Now:    func() time.Time { return fixedNow },
		Log:    logger.NewNop(),
	}, Options{DefaultLocale: "en-US"})

	require.NoError(t, e.RegisterChannel(&domain.Channel{ID: "email_primary", Kind: domain.ChannelKindEmail, Enabled: true}))
	require.NoError(t, e.RegisterChannel(&domain.Channel{ID: "sms_primary", Kind: domain.ChannelKindSMS, Enabled: true}))
	require.NoError(t, e.RegisterChannel(&domain.Channel{ID: "in_app", Kind: domain.ChannelKindInApp, Enabled: true}))

	_, err := e.RegisterTemplate(&domain.NotificationTemplate{
		ID:       "document_expiry",
		Channels: []domain.ChannelKind{domain.ChannelKindEmail, domain.ChannelKindSMS},
		Content: map[domain.ChannelKind]domain.TemplateContent{
			domain.ChannelKindEmail: {Subject: "{{documentType}} expiring", Body: "Expires in {{daysRemaining}} days"},
			domain.ChannelKindSMS:   {Body: "{{documentType}} expires in {{daysRemaining}}d"},
		},
		Active: true,
	})
	require.NoError(t, err)
	_, err = e.RegisterTemplate(&domain.NotificationTemplate{
		ID:       "payroll",
		Channels: []domain.ChannelKind{domain.ChannelKindEmail, domain.ChannelKindInApp},
		Content: map[domain.ChannelKind]domain.TemplateContent{
			domain.ChannelKindEmail: {Subject: "Payslip {{period}}", Body: "Net {{netAmount}}"},
			domain.ChannelKindInApp: {Subject: "Payslip {{period}}", Body: "Net {{netAmount}}"},
		},
		Active: true,
	})
	require.NoError(t, err)

	require.NoError(t, e.RegisterRecipient(context.Background(), &domain.Recipient{
		ID:   "u1",
		Name: "Lan",
		Preferences: domain.Preferences{
			Channels: []string{"email_primary", "sms_primary", "in_app"},
		},
		Contact: map[domain.ChannelKind]string{
			domain.ChannelKindEmail: "lan@example.com",
			domain.ChannelKindSMS:   "+84900000000",
		},
	}))
	return e
}

func expiryRule() *domain.NotificationRule {
	return &domain.NotificationRule{
		ID:         "doc-expiry",
		EventType:  domain.EventTypeDocumentExpiryCheck,
		Channels:   []string{"email_primary", "sms_primary"},
		Recipients: []domain.RecipientRef{{Type: domain.RecipientTypeUser, ID: "u1"}},
		TemplateID: "document_expiry",
		Priority:   domain.PriorityMedium,
		Scheduling: domain.SchedulingPolicy{Mode: domain.ScheduleImmediate},
		Active:     true,
	}
}

func TestEngine_DocumentExpiryEndToEnd(t *testing.T) {
	transport := &fakeTransport{}
	e := newTestEngine(t, transport)
	require.NoError(t, e.RegisterRule(expiryRule()))
	rec := record(e, telemetry.DeliveryUpdated, telemetry.NotificationProcessed)

	event := domain.NewDocumentExpiryEvent("evt-1", "doc-1", "passport", "u1", 5, fixedNow)
	require.Equal(t, domain.PriorityCritical, event.Priority)

	report, err := e.ProcessEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RulesMatched)
	require.Len(t, report.Deliveries, 2)
	assert.Equal(t, 1, rec.count(telemetry.NotificationProcessed))
	processed := rec.events[telemetry.NotificationProcessed][0].Data.(domain.NotificationProcessed)
	assert.Equal(t, "evt-1", processed.Event.ID)
	assert.Equal(t, "passport", processed.Event.Data["documentType"])
	assert.Equal(t, 1, processed.RulesMatched)

	// Nothing is sent before the processor ticks
	assert.Empty(t, transport.sent)
	assert.Equal(t, 2, e.GetDeliveryStats().Pending)

	assert.Equal(t, 2, e.Tick(context.Background()))

	for _, d := range report.Deliveries {
		got, err := e.GetDelivery(d.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PriorityCritical, got.Priority)
		assert.Contains(t, []domain.DeliveryStatus{domain.DeliveryStatusDelivered, domain.DeliveryStatusFailed}, got.Status)
		assert.GreaterOrEqual(t, got.Attempts, 1)
	}
	assert.Equal(t, 2, rec.count(telemetry.DeliveryUpdated))

	stats := e.GetDeliveryStats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Delivered)

	sms := e.ListDeliveries("")
	var smsBody string
	for _, d := range sms {
		if d.ChannelKind == domain.ChannelKindSMS {
			smsBody = d.Content.Body
		}
	}
	assert.Equal(t, "passport expires in 5d", smsBody)
}

func TestEngine_PayrollThrottledPerDay(t *testing.T) {
	transport := &fakeTransport{}
	e := newTestEngine(t, transport)
	require.NoError(t, e.RegisterRule(&domain.NotificationRule{
		ID:         "payroll",
		EventType:  domain.EventTypePayrollProcessed,
		Channels:   []string{"email_primary", "in_app"},
		Recipients: []domain.RecipientRef{{Type: domain.RecipientTypeUser, ID: "u1"}},
		TemplateID: "payroll",
		Priority:   domain.PriorityMedium,
		Throttling: domain.Throttling{MaxPerDay: 1},
		Scheduling: domain.SchedulingPolicy{Mode: domain.ScheduleImmediate},
		Active:     true,
	}))

	first, err := e.ProcessEvent(context.Background(), domain.NewPayrollProcessedEvent("p1", "u1", "2026-02", 1250.5, fixedNow))
	require.NoError(t, err)
	require.Len(t, first.Deliveries, 1)
	// Medium priority keeps the cheapest channel
	assert.Equal(t, "in_app", first.Deliveries[0].ChannelID)
	assert.Equal(t, "Net 1250.5", first.Deliveries[0].Content.Body)

	second, err := e.ProcessEvent(context.Background(), domain.NewPayrollProcessedEvent("p2", "u1", "2026-02", 1250.5, fixedNow))
	require.NoError(t, err)
	assert.Empty(t, second.Deliveries)
	assert.Equal(t, 1, second.Throttled)
	assert.Equal(t, 0, second.RulesMatched)

	assert.Equal(t, 1, e.GetDeliveryStats().Total)
}

func TestEngine_EventTypeIsolation(t *testing.T) {
	e := newTestEngine(t, &fakeTransport{})
	require.NoError(t, e.RegisterRule(expiryRule()))

	report, err := e.ProcessEvent(context.Background(), domain.NewPayrollProcessedEvent("p1", "u1", "2026-02", 10, fixedNow))
	require.NoError(t, err)
	assert.Equal(t, 0, report.RulesMatched)
	assert.Empty(t, report.Deliveries)
}

func TestEngine_MissingTemplateSkipsRule(t *testing.T) {
	e := newTestEngine(t, &fakeTransport{})
	rule := expiryRule()
	rule.TemplateID = "missing"
	require.NoError(t, e.RegisterRule(rule))

	report, err := e.ProcessEvent(context.Background(), domain.NewDocumentExpiryEvent("evt-1", "doc-1", "passport", "u1", 5, fixedNow))
	require.NoError(t, err)
	assert.Equal(t, 1, report.RulesMatched)
	assert.Empty(t, report.Deliveries)
	assert.Equal(t, 1, report.Skipped)
}

func TestEngine_SubmitEventSwallowsErrors(t *testing.T) {
	e := newTestEngine(t, &fakeTransport{})
	rec := record(e, telemetry.NotificationProcessed)

	assert.NotPanics(t, func() {
		e.SubmitEvent(context.Background(), domain.NotificationEvent{})
	})
	require.Equal(t, 1, rec.count(telemetry.NotificationProcessed))
	processed := rec.events[telemetry.NotificationProcessed][0].Data.(domain.NotificationProcessed)
	assert.NotEmpty(t, processed.Error)

	_, err := e.ProcessEvent(context.Background(), domain.NotificationEvent{})
	assert.True(t, errors.Is(err, errors.ErrInvalid))
}

func TestEngine_GetChannelHealthIsIdempotent(t *testing.T) {
	e := newTestEngine(t, &fakeTransport{})

	first := e.GetChannelHealth()
	second := e.GetChannelHealth()
	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "email_primary", first[0].ChannelID)
	assert.Equal(t, domain.HealthStatusHealthy, first[0].Status)
}

func TestEngine_FailedTransportRetries(t *testing.T) {
	transport := &fakeTransport{failOn: map[string]bool{"sms_primary": true}}
	e := newTestEngine(t, transport)
	require.NoError(t, e.RegisterRule(expiryRule()))

	_, err := e.ProcessEvent(context.Background(), domain.NewDocumentExpiryEvent("evt-1", "doc-1", "passport", "u1", 5, fixedNow))
	require.NoError(t, err)
	e.Tick(context.Background())

	failed := e.ListDeliveries(domain.DeliveryStatusFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "sms_primary", failed[0].ChannelID)
	assert.Equal(t, 1, failed[0].Attempts)
	assert.False(t, failed[0].Terminal())
	assert.Contains(t, failed[0].LastError, "rejected")

	health := e.GetChannelHealth()
	for _, h := range health {
		if h.ChannelID == "sms_primary" {
			assert.Equal(t, int64(1), h.Metrics.Failed)
		}
	}
}

func TestEngine_CancelDelivery(t *testing.T) {
	e := newTestEngine(t, &fakeTransport{})
	require.NoError(t, e.RegisterRule(expiryRule()))

	report, err := e.ProcessEvent(context.Background(), domain.NewDocumentExpiryEvent("evt-1", "doc-1", "passport", "u1", 5, fixedNow))
	require.NoError(t, err)
	id := report.Deliveries[0].ID

	d, err := e.CancelDelivery(id)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusCancelled, d.Status)

	_, err = e.CancelDelivery(id)
	assert.NoError(t, err)

	assert.Equal(t, 1, e.Tick(context.Background()))
	assert.Equal(t, 1, e.GetDeliveryStats().Cancelled)

	_, err = e.GetDelivery("missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestEngine_UpdatePreferences(t *testing.T) {
	e := newTestEngine(t, &fakeTransport{})
	require.NoError(t, e.RegisterRule(expiryRule()))
	ctx := context.Background()

	_, err := e.UpdatePreferences(ctx, "u1", domain.Preferences{Channels: []string{"nope"}})
	assert.True(t, errors.Is(err, errors.ErrInvalid))

	_, err = e.UpdatePreferences(ctx, "ghost", domain.Preferences{})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	saved, err := e.UpdatePreferences(ctx, "u1", domain.Preferences{Channels: []string{"email_primary"}, Locales: []string{"vi-VN"}})
	require.NoError(t, err)
	assert.Equal(t, "u1", saved.RecipientID)

	got, err := e.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"email_primary"}, got.Channels)

	report, err := e.ProcessEvent(ctx, domain.NewDocumentExpiryEvent("evt-1", "doc-1", "passport", "u1", 5, fixedNow))
	require.NoError(t, err)
	require.Len(t, report.Deliveries, 1)
	assert.Equal(t, "email_primary", report.Deliveries[0].ChannelID)
	assert.Equal(t, "vi-VN", report.Deliveries[0].Content.Locale)

	// Re-registering the recipient keeps the saved preferences
	require.NoError(t, e.RegisterRecipient(ctx, &domain.Recipient{ID: "u1"}))
	r, err := e.GetRecipient("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"email_primary"}, r.Preferences.Channels)
}

func TestEngine_StartStop(t *testing.T) {
	transport := &fakeTransport{}
	e := New(Dependencies{Sender: transport, Prober: transport}, Options{
		ProcessorInterval: 5 * time.Millisecond,
		HealthInterval:    5 * time.Millisecond,
	})
	require.NoError(t, e.RegisterChannel(&domain.Channel{ID: "in_app", Kind: domain.ChannelKindInApp, Enabled: true}))
	require.NoError(t, e.Processor().Enqueue(&domain.Delivery{
		ID: "d1", ChannelID: "in_app", ChannelKind: domain.ChannelKindInApp,
		Status: domain.DeliveryStatusPending, MaxAttempts: 3, ScheduledAt: time.Now(),
	}))

	e.Start(context.Background())
	e.Start(context.Background())

	assert.Eventually(t, func() bool {
		d, err := e.GetDelivery("d1")
		return err == nil && d.Status == domain.DeliveryStatusDelivered
	}, time.Second, 5*time.Millisecond)

	e.Stop()
	e.Stop()
}
