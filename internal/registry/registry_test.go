package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
)

func TestChannelRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		channel *domain.Channel
		wantErr bool
	}{
		{name: "valid", channel: &domain.Channel{ID: "email_primary", Kind: domain.ChannelKindEmail}},
		{name: "missing id", channel: &domain.Channel{Kind: domain.ChannelKindEmail}, wantErr: true},
		{name: "unknown kind", channel: &domain.Channel{ID: "fax", Kind: "fax"}, wantErr: true},
		{name: "nil", channel: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewChannelRegistry()
			err := r.Register(tt.channel)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalid))
				return
			}
			require.NoError(t, err)
			got, ok := r.Get(tt.channel.ID)
			require.True(t, ok)
			assert.Equal(t, domain.HealthStatusHealthy, got.Status)
			assert.Equal(t, tt.channel.ID, got.Name)
		})
	}
}

func TestChannelRegistry_ReplaceKeepsMetrics(t *testing.T) {
	r := NewChannelRegistry()
	require.NoError(t, r.Register(&domain.Channel{ID: "sms_primary", Kind: domain.ChannelKindSMS, Enabled: true}))
	_, err := r.UpdateMetrics("sms_primary", func(m domain.ChannelMetrics) domain.ChannelMetrics {
		m.Sent = 3
		m.Delivered = 2
		return m
	})
	require.NoError(t, err)
	_, err = r.SetStatus("sms_primary", domain.HealthStatusDown, time.Now())
	require.NoError(t, err)

	require.NoError(t, r.Register(&domain.Channel{ID: "sms_primary", Kind: domain.ChannelKindSMS, Name: "SMS"}))

	got, _ := r.Get("sms_primary")
	assert.Equal(t, "SMS", got.Name)
	assert.False(t, got.Enabled)
	assert.Equal(t, int64(3), got.Metrics.Sent)
	assert.Equal(t, domain.HealthStatusDown, got.Status)
}

func TestChannelRegistry_SnapshotIsolation(t *testing.T) {
	r := NewChannelRegistry()
	require.NoError(t, r.Register(&domain.Channel{ID: "push", Kind: domain.ChannelKindPush}))

	before, _ := r.Get("push")
	_, err := r.SetEnabled("push", true)
	require.NoError(t, err)
	after, _ := r.Get("push")

	assert.False(t, before.Enabled)
	assert.True(t, after.Enabled)
}

func TestChannelRegistry_ConcurrentWriters(t *testing.T) {
	r := NewChannelRegistry()
	require.NoError(t, r.Register(&domain.Channel{ID: "chat", Kind: domain.ChannelKindChat}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.UpdateMetrics("chat", func(m domain.ChannelMetrics) domain.ChannelMetrics {
				m.Sent++
				return m
			})
		}()
		go func() {
			defer wg.Done()
			_, _ = r.SetStatus("chat", domain.HealthStatusHealthy, time.Now())
		}()
	}
	wg.Wait()

	got, _ := r.Get("chat")
	assert.Equal(t, int64(50), got.Metrics.Sent)
}

func TestChannelRegistry_ReplaceDuringMetricUpdates(t *testing.T) {
	r := NewChannelRegistry()
	def := &domain.Channel{ID: "email_primary", Kind: domain.ChannelKindEmail, Enabled: true}
	require.NoError(t, r.Register(def))

	const n = 2000
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, _ = r.UpdateMetrics("email_primary", func(m domain.ChannelMetrics) domain.ChannelMetrics {
				m.Sent++
				return m
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = r.Register(def)
		}
	}()
	wg.Wait()

	got, _ := r.Get("email_primary")
	assert.Equal(t, int64(n), got.Metrics.Sent)
}

func TestChannelRegistry_RegisterIgnoresCallerStatus(t *testing.T) {
	r := NewChannelRegistry()
	require.NoError(t, r.Register(&domain.Channel{ID: "sms_primary", Kind: domain.ChannelKindSMS, Status: domain.HealthStatusDown}))

	got, _ := r.Get("sms_primary")
	assert.Equal(t, domain.HealthStatusHealthy, got.Status)

	checked := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	_, err := r.SetStatus("sms_primary", domain.HealthStatusDegraded, checked)
	require.NoError(t, err)

	require.NoError(t, r.Register(&domain.Channel{ID: "sms_primary", Kind: domain.ChannelKindSMS, Status: domain.HealthStatusHealthy}))

	got, _ = r.Get("sms_primary")
	assert.Equal(t, domain.HealthStatusDegraded, got.Status)
	assert.True(t, checked.Equal(got.LastHealthCheck))
}

func TestChannelRegistry_UpdateUnknown(t *testing.T) {
	r := NewChannelRegistry()
	_, err := r.SetStatus("missing", domain.HealthStatusDown, time.Now())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestTemplateStore_Versions(t *testing.T) {
	s := NewTemplateStore()
	tmpl := &domain.NotificationTemplate{
		ID:       "doc_expiry",
		Channels: []domain.ChannelKind{domain.ChannelKindEmail},
		Content: map[domain.ChannelKind]domain.TemplateContent{
			domain.ChannelKindEmail: {Subject: "v1", Body: "body"},
		},
	}

	first, err := s.Register(tmpl)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	tmpl.Content[domain.ChannelKindEmail] = domain.TemplateContent{Subject: "v2", Body: "body"}
	second, err := s.Register(tmpl)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	latest, ok := s.Get("doc_expiry")
	require.True(t, ok)
	assert.Equal(t, "v2", latest.Content[domain.ChannelKindEmail].Subject)

	old, ok := s.GetVersion("doc_expiry", 1)
	require.True(t, ok)
	assert.Equal(t, "v1", old.Content[domain.ChannelKindEmail].Subject)
}

func TestTemplateStore_RegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		tmpl *domain.NotificationTemplate
	}{
		{name: "empty id", tmpl: &domain.NotificationTemplate{}},
		{name: "invalid characters", tmpl: &domain.NotificationTemplate{ID: "bad\nid"}},
		{name: "declared channel without content", tmpl: &domain.NotificationTemplate{
			ID:       "t",
			Channels: []domain.ChannelKind{domain.ChannelKindSMS},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTemplateStore().Register(tt.tmpl)
			assert.Error(t, err)
		})
	}
}

func TestRecipientDirectory_Lookups(t *testing.T) {
	d := NewRecipientDirectory()
	require.NoError(t, d.Register(&domain.Recipient{ID: "u2", Roles: []string{"hr_manager"}, Department: "hr"}))
	require.NoError(t, d.Register(&domain.Recipient{ID: "u1", Roles: []string{"hr_manager", "admin"}, Department: "finance"}))
	require.NoError(t, d.Register(&domain.Recipient{ID: "u3", Department: "hr"}))

	assert.Equal(t, []string{"u1", "u2"}, ids(d.WithRole("hr_manager")))
	assert.Equal(t, []string{"u2", "u3"}, ids(d.InDepartment("hr")))

	r, ok := d.Get("u3")
	require.True(t, ok)
	assert.Equal(t, domain.RecipientTypeUser, r.Type)

	require.NoError(t, d.SetPreferences("u3", domain.Preferences{Channels: []string{"email_primary"}}))
	r, _ = d.Get("u3")
	assert.Equal(t, []string{"email_primary"}, r.Preferences.Channels)
	assert.Equal(t, "u3", r.Preferences.RecipientID)

	assert.Error(t, d.SetPreferences("nobody", domain.Preferences{}))
}

func TestRuleRegistry_ActiveFor(t *testing.T) {
	r := NewRuleRegistry()
	rule := func(id, eventType string, active bool) *domain.NotificationRule {
		return &domain.NotificationRule{ID: id, EventType: eventType, TemplateID: "t", Priority: domain.PriorityLow, Active: active}
	}
	require.NoError(t, r.Register(rule("b", "payroll_processed", true)))
	require.NoError(t, r.Register(rule("a", "payroll_processed", true)))
	require.NoError(t, r.Register(rule("c", "payroll_processed", false)))
	require.NoError(t, r.Register(rule("d", "document_expiry_check", true)))

	got := r.ActiveFor("payroll_processed")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	err := r.Register(&domain.NotificationRule{ID: "x", EventType: "e", TemplateID: "t", Priority: "urgent"})
	assert.True(t, errors.Is(err, errors.ErrInvalid))
}

func ids(rs []*domain.Recipient) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}
