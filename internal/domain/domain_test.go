package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuietHours_Contains(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		quiet QuietHours
		t     time.Time
		want  bool
	}{
		{"overnight late evening", QuietHours{"22:00", "07:00"}, at(23, 30), true},
		{"overnight early morning", QuietHours{"22:00", "07:00"}, at(6, 59), true},
		{"overnight end is exclusive", QuietHours{"22:00", "07:00"}, at(7, 0), false},
		{"overnight midday", QuietHours{"22:00", "07:00"}, at(12, 0), false},
		{"same day inside", QuietHours{"12:00", "14:00"}, at(13, 15), true},
		{"same day start inclusive", QuietHours{"12:00", "14:00"}, at(12, 0), true},
		{"same day outside", QuietHours{"12:00", "14:00"}, at(14, 0), false},
		{"empty window", QuietHours{"09:00", "09:00"}, at(9, 0), false},
		{"malformed", QuietHours{"late", "07:00"}, at(23, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.quiet.Contains(tt.t))
		})
	}
}

func TestQuietHours_Bounds(t *testing.T) {
	start, end, err := QuietHours{Start: "22:30", End: " 07:05"}.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 22*60+30, start)
	assert.Equal(t, 7*60+5, end)

	for _, bad := range []string{"24:00", "12:60", "1200", "", "ab:cd"} {
		_, _, err := QuietHours{Start: bad, End: "07:00"}.Bounds()
		assert.Error(t, err, bad)
	}
}

func TestPriorityForDaysRemaining(t *testing.T) {
	tests := []struct {
		days int
		want Priority
	}{
		{-1, PriorityCritical},
		{0, PriorityCritical},
		{7, PriorityCritical},
		{8, PriorityHigh},
		{14, PriorityHigh},
		{15, PriorityMedium},
		{30, PriorityMedium},
		{31, PriorityLow},
		{365, PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityForDaysRemaining(tt.days), "days=%d", tt.days)
	}
}

func TestPriority_WeightAndMax(t *testing.T) {
	assert.Equal(t, 4, PriorityCritical.Weight())
	assert.Equal(t, 1, PriorityLow.Weight())
	assert.False(t, Priority("urgent").Valid())

	assert.Equal(t, PriorityHigh, MaxPriority(PriorityMedium, PriorityHigh))
	assert.Equal(t, PriorityHigh, MaxPriority(PriorityHigh, PriorityLow))
	assert.Equal(t, PriorityMedium, MaxPriority(PriorityMedium, ""))
}

func TestChannelMetrics(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	var m ChannelMetrics
	assert.Zero(t, m.Reliability())
	rate, samples := m.RecentFailureRate(now, 5*time.Minute)
	assert.Zero(t, rate)
	assert.Zero(t, samples)

	m = m.WithOutcome(Outcome{At: now.Add(-10 * time.Minute), Failed: true}, 5*time.Minute, 10)
	m = m.WithOutcome(Outcome{At: now.Add(-2 * time.Minute), Failed: true}, 5*time.Minute, 10)
	m = m.WithOutcome(Outcome{At: now.Add(-time.Minute)}, 5*time.Minute, 10)

	// The ten-minute-old outcome was pruned when newer ones arrived
	require.Len(t, m.Recent, 2)
	rate, samples = m.RecentFailureRate(now, 5*time.Minute)
	assert.Equal(t, 2, samples)
	assert.InDelta(t, 0.5, rate, 1e-9)

	for i := 0; i < 5; i++ {
		m = m.WithOutcome(Outcome{At: now}, 5*time.Minute, 3)
	}
	assert.Len(t, m.Recent, 3)

	m.Sent, m.Delivered = 4, 3
	assert.InDelta(t, 0.75, m.Reliability(), 1e-9)
}

func TestChannel_RedactedDoesNotShareState(t *testing.T) {
	ch := &Channel{
		ID:      "hooks",
		Kind:    ChannelKindWebhook,
		Config:  ChannelConfig{Credentials: map[string]string{"token": "secret"}},
		Metrics: ChannelMetrics{Recent: []Outcome{{Failed: true}}},
	}

	red := ch.Redacted()
	assert.Nil(t, red.Config.Credentials)
	assert.Equal(t, "secret", ch.Config.Credentials["token"])

	clone := ch.Clone()
	clone.Config.Credentials["token"] = "changed"
	clone.Metrics.Recent[0].Failed = false
	assert.Equal(t, "secret", ch.Config.Credentials["token"])
	assert.True(t, ch.Metrics.Recent[0].Failed)
}

func TestNotificationTemplate_ContentFor(t *testing.T) {
	tmpl := &NotificationTemplate{
		Channels: []ChannelKind{ChannelKindEmail, ChannelKindSMS},
		Content: map[ChannelKind]TemplateContent{
			ChannelKindEmail: {Subject: "Hello", Body: "Body"},
			ChannelKindSMS:   {Body: "SMS"},
		},
		Locales: map[string]map[ChannelKind]TemplateContent{
			"vi-VN": {
				ChannelKindEmail: {Subject: "Xin chào", Body: "Nội dung"},
				ChannelKindPush:  {Body: "Đẩy"},
			},
			"fr-FR": {ChannelKindEmail: {Subject: "Bonjour"}},
		},
	}

	assert.True(t, tmpl.Supports(ChannelKindSMS))
	assert.False(t, tmpl.Supports(ChannelKindPush))

	tests := []struct {
		name        string
		kind        ChannelKind
		locale      string
		wantSubject string
		wantBody    string
		wantOK      bool
	}{
		{"default locale", ChannelKindEmail, "en-US", "Hello", "Body", true},
		{"locale override", ChannelKindEmail, "vi-VN", "Xin chào", "Nội dung", true},
		{"locale without kind falls back", ChannelKindSMS, "vi-VN", "", "SMS", true},
		{"override merges onto base", ChannelKindEmail, "fr-FR", "Bonjour", "Body", true},
		{"missing kind", ChannelKindPush, "en-US", "", "", false},
		{"override without base content", ChannelKindPush, "vi-VN", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := tmpl.ContentFor(tt.kind, tt.locale)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSubject, c.Subject)
			assert.Equal(t, tt.wantBody, c.Body)
		})
	}
}

func TestPreferences_LocaleAndClone(t *testing.T) {
	p := Preferences{
		Channels:   []string{"email"},
		Locales:    []string{"", "vi-VN"},
		QuietHours: &QuietHours{Start: "22:00", End: "07:00"},
		Timezone:   "Asia/Ho_Chi_Minh",
	}
	assert.Equal(t, "vi-VN", p.Locale("en-US"))
	assert.Equal(t, "en-US", Preferences{}.Locale("en-US"))
	assert.Equal(t, "Asia/Ho_Chi_Minh", p.Location().String())

	c := p.Clone()
	c.Channels[0] = "sms"
	c.QuietHours.Start = "23:00"
	assert.Equal(t, "email", p.Channels[0])
	assert.Equal(t, "22:00", p.QuietHours.Start)
}

func TestNotificationEvent_Validate(t *testing.T) {
	ok := NewPayrollProcessedEvent("e1", "emp", "2026-02", 10, time.Now())
	assert.NoError(t, ok.Validate())

	missing := NotificationEvent{}
	assert.Error(t, missing.Validate())

	bad := NotificationEvent{Type: "x", Priority: "urgent"}
	assert.Error(t, bad.Validate())

	expiry := NewDocumentExpiryEvent("e2", "doc", "visa", "u1", 12, time.Now())
	assert.Equal(t, PriorityHigh, expiry.Priority)
	assert.Equal(t, "u1", expiry.Data["userId"])
}
