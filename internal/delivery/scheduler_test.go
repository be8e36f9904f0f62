package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

func TestRetryBackoff(t *testing.T) {
	for n := 1; n <= 10; n++ {
		want := time.Duration(1<<uint(n)) * time.Second
		if want > 5*time.Minute {
			want = 5 * time.Minute
		}
		assert.Equal(t, want, RetryBackoff(n), "attempt %d", n)
	}

	assert.Equal(t, 256*time.Second, RetryBackoff(8))
	assert.Equal(t, MaxBackoff, RetryBackoff(9))
	assert.Equal(t, MaxBackoff, RetryBackoff(30))
	assert.Equal(t, BaseBackoff, RetryBackoff(0))
}

func TestScheduledAt(t *testing.T) {
	// Monday 2026-03-02
	day := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }
	nextDay := func(h, m int) time.Time { return time.Date(2026, 3, 3, h, m, 0, 0, time.UTC) }

	overnight := &domain.Recipient{ID: "u1", Preferences: domain.Preferences{
		QuietHours: &domain.QuietHours{Start: "22:00", End: "08:00"},
	}}
	afternoon := &domain.Recipient{ID: "u2", Preferences: domain.Preferences{
		QuietHours: &domain.QuietHours{Start: "13:00", End: "15:00"},
	}}

	tests := []struct {
		name      string
		now       time.Time
		policy    domain.SchedulingPolicy
		recipient *domain.Recipient
		priority  domain.Priority
		want      time.Time
	}{
		{
			name:   "immediate ignores delay",
			now:    day(10, 0),
			policy: domain.SchedulingPolicy{Mode: domain.ScheduleImmediate, Delay: time.Hour},
			want:   day(10, 0),
		},
		{
			name:   "delayed adds delay",
			now:    day(10, 0),
			policy: domain.SchedulingPolicy{Mode: domain.ScheduleDelayed, Delay: 30 * time.Minute},
			want:   day(10, 30),
		},
		{
			name:   "business hours inside window",
			now:    day(16, 59),
			policy: domain.SchedulingPolicy{Mode: domain.ScheduleImmediate, BusinessHoursOnly: true},
			want:   day(16, 59),
		},
		{
			name:   "business hours after close",
			now:    day(17, 0),
			policy: domain.SchedulingPolicy{Mode: domain.ScheduleImmediate, BusinessHoursOnly: true},
			want:   nextDay(9, 0),
		},
		{
			name:   "delay pushes past business hours",
			now:    day(16, 0),
			policy: domain.SchedulingPolicy{Mode: domain.ScheduleDelayed, Delay: 2 * time.Hour, BusinessHoursOnly: true},
			want:   nextDay(9, 0),
		},
		{
			name:      "delay lands in quiet hours",
			now:       day(12, 0),
			policy:    domain.SchedulingPolicy{Mode: domain.ScheduleDelayed, Delay: 90 * time.Minute},
			recipient: afternoon,
			priority:  domain.PriorityMedium,
			want:      day(16, 0),
		},
		{
			name:      "overnight quiet hours before midnight",
			now:       day(23, 0),
			recipient: overnight,
			priority:  domain.PriorityMedium,
			want:      nextDay(9, 0),
		},
		{
			name:      "overnight quiet hours after midnight",
			now:       day(2, 0),
			recipient: overnight,
			priority:  domain.PriorityMedium,
			want:      day(9, 0),
		},
		{
			name:      "outside overnight quiet hours",
			now:       day(12, 0),
			recipient: overnight,
			priority:  domain.PriorityMedium,
			want:      day(12, 0),
		},
		{
			name:      "same day quiet hours",
			now:       day(14, 0),
			recipient: afternoon,
			priority:  domain.PriorityLow,
			want:      day(16, 0),
		},
		{
			name:      "same day quiet hours do not wrap",
			now:       day(23, 0),
			recipient: afternoon,
			priority:  domain.PriorityLow,
			want:      day(23, 0),
		},
		{
			name:      "critical bypasses quiet hours",
			now:       day(23, 0),
			recipient: overnight,
			priority:  domain.PriorityCritical,
			want:      day(23, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScheduledAt(tt.now, tt.policy, tt.recipient, tt.priority)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestScheduledAt_QuietHoursInRecipientTimezone(t *testing.T) {
	recipient := &domain.Recipient{ID: "u1", Preferences: domain.Preferences{
		Timezone:   "Asia/Ho_Chi_Minh",
		QuietHours: &domain.QuietHours{Start: "22:00", End: "07:00"},
	}}
	// 16:00 UTC is 23:00 in UTC+7
	now := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)

	got := ScheduledAt(now, domain.SchedulingPolicy{Mode: domain.ScheduleImmediate}, recipient, domain.PriorityHigh)

	// 08:00 next day local is 01:00 UTC
	assert.True(t, time.Date(2026, 3, 3, 1, 0, 0, 0, time.UTC).Equal(got), "got %s", got)
}

func TestScheduler_Schedule(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(func() time.Time { return now }, 0)

	rule := &domain.NotificationRule{ID: "r1", Scheduling: domain.SchedulingPolicy{Mode: domain.ScheduleImmediate}}
	recipient := &domain.Recipient{ID: "u1", Contact: map[domain.ChannelKind]string{domain.ChannelKindEmail: "u1@example.com"}}

	t.Run("channel default retry attempts", func(t *testing.T) {
		ch := &domain.Channel{ID: "email_primary", Kind: domain.ChannelKindEmail}
		d := s.Schedule(Plan{NotificationID: "evt-1", Rule: rule, Recipient: recipient, Channel: ch, Priority: domain.PriorityHigh,
			Content: domain.RenderedContent{Subject: "hi", Body: "body"}})

		require.NotEmpty(t, d.ID)
		assert.Equal(t, domain.DeliveryStatusPending, d.Status)
		assert.Equal(t, 0, d.Attempts)
		assert.Equal(t, DefaultMaxAttempts, d.MaxAttempts)
		assert.Equal(t, "u1@example.com", d.Address)
		assert.Equal(t, "evt-1", d.NotificationID)
		assert.Equal(t, "r1", d.RuleID)
		assert.Equal(t, domain.ChannelKindEmail, d.ChannelKind)
		assert.Equal(t, "hi", d.Content.Subject)
		assert.True(t, now.Equal(d.ScheduledAt))
	})

	t.Run("channel retry attempts", func(t *testing.T) {
		ch := &domain.Channel{ID: "sms_primary", Kind: domain.ChannelKindSMS, Config: domain.ChannelConfig{RetryAttempts: 5}}
		d := s.Schedule(Plan{Rule: rule, Recipient: recipient, Channel: ch, Priority: domain.PriorityLow})

		assert.Equal(t, 5, d.MaxAttempts)
		assert.Empty(t, d.Address)
	})
}

func TestDueQueue(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	q := NewDueQueue()

	q.Push("late", base.Add(time.Minute), 1)
	q.Push("low", base, 1)
	q.Push("critical", base, 4)
	q.Push("gone", base, 2)

	assert.Equal(t, 4, q.Len())
	assert.True(t, q.Remove("gone"))
	assert.False(t, q.Remove("gone"))

	next, ok := q.NextDue()
	require.True(t, ok)
	assert.True(t, base.Equal(next))

	assert.Equal(t, []string{"critical", "low"}, q.PopDue(base))
	assert.Empty(t, q.PopDue(base))

	q.Push("late", base, 1)
	assert.Equal(t, []string{"late"}, q.PopDue(base))
	assert.Equal(t, 0, q.Len())
}
