package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fakeSubmitter struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (f *fakeSubmitter) SubmitEvent(ctx context.Context, event domain.NotificationEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func dailyExpiryCheck() domain.ScheduledEvent {
	return domain.ScheduledEvent{
		ID:       "daily-expiry",
		Schedule: "0 8 * * *",
		Event: domain.NotificationEvent{
			Type: domain.EventTypeDocumentExpiryCheck,
			Data: map[string]any{"documentType": "passport"},
		},
		Active: true,
	}
}

func TestEventScheduler_Register(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *domain.ScheduledEvent)
		wantErr bool
	}{
		{"valid", func(s *domain.ScheduledEvent) {}, false},
		{"descriptor", func(s *domain.ScheduledEvent) { s.Schedule = "@hourly" }, false},
		{"missing id", func(s *domain.ScheduledEvent) { s.ID = "" }, true},
		{"bad cron", func(s *domain.ScheduledEvent) { s.Schedule = "every morning" }, true},
		{"seconds field not accepted", func(s *domain.ScheduledEvent) { s.Schedule = "0 0 8 * * *" }, true},
		{"missing event type", func(s *domain.ScheduledEvent) { s.Event.Type = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewEventScheduler(&fakeSubmitter{}, func() time.Time { return fixedNow }, logger.NewNop())
			sched := dailyExpiryCheck()
			tt.mutate(&sched)

			err := s.Register(sched)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalid))
				assert.Equal(t, 0, s.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, s.Len())
		})
	}
}

func TestEventScheduler_TriggerSubmitsFreshCopies(t *testing.T) {
	sub := &fakeSubmitter{}
	s := NewEventScheduler(sub, func() time.Time { return fixedNow }, logger.NewNop())
	require.NoError(t, s.Register(dailyExpiryCheck()))

	require.NoError(t, s.Trigger(context.Background(), "daily-expiry"))
	require.NoError(t, s.Trigger(context.Background(), "daily-expiry"))

	require.Len(t, sub.events, 2)
	first, second := sub.events[0], sub.events[1]
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, domain.EventTypeDocumentExpiryCheck, first.Type)
	assert.Equal(t, "scheduler", first.Source)
	assert.Equal(t, "daily-expiry", first.CorrelationID)
	assert.Equal(t, fixedNow, first.Metadata.Timestamp)

	// Submitted data is a copy
	first.Data["documentType"] = "visa"
	assert.Equal(t, "passport", second.Data["documentType"])

	list := s.List()
	require.Len(t, list, 1)
	require.NotNil(t, list[0].LastRunAt)
	assert.Equal(t, fixedNow, *list[0].LastRunAt)

	err := s.Trigger(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestEventScheduler_ReplaceAndRemove(t *testing.T) {
	s := NewEventScheduler(&fakeSubmitter{}, nil, logger.NewNop())
	require.NoError(t, s.Register(dailyExpiryCheck()))

	replaced := dailyExpiryCheck()
	replaced.Schedule = "30 9 * * 1-5"
	require.NoError(t, s.Register(replaced))

	inactive := dailyExpiryCheck()
	inactive.ID = "paused"
	inactive.Active = false
	require.NoError(t, s.Register(inactive))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "daily-expiry", list[0].ID)
	assert.Equal(t, "30 9 * * 1-5", list[0].Schedule)
	assert.Equal(t, "paused", list[1].ID)
	assert.Nil(t, list[1].NextRunAt)
	assert.Len(t, s.cron.Entries(), 1)

	assert.True(t, s.Remove("daily-expiry"))
	assert.False(t, s.Remove("daily-expiry"))
	assert.Empty(t, s.cron.Entries())
	assert.Equal(t, 1, s.Len())
}

func TestEventScheduler_StartStop(t *testing.T) {
	s := NewEventScheduler(&fakeSubmitter{}, nil, logger.NewNop())
	require.NoError(t, s.Register(dailyExpiryCheck()))

	s.Start()
	list := s.List()
	require.Len(t, list, 1)
	require.NotNil(t, list[0].NextRunAt)
	s.Stop()
}
