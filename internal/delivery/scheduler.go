package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// Business hours are [9, 17) in the rule's timezone
const (
	BusinessStartHour = 9
	BusinessEndHour   = 17
)

// DefaultMaxAttempts is used when a channel has no retry setting
const DefaultMaxAttempts = 3

// Plan describes one (rule, recipient, channel) combination to schedule
type Plan struct {
	NotificationID string
	Rule           *domain.NotificationRule
	Recipient      *domain.Recipient
	Channel        *domain.Channel
	Priority       domain.Priority
	Content        domain.RenderedContent
}

// Scheduler computes when new deliveries become due
type Scheduler struct {
	now                  func() time.Time
	defaultRetryAttempts int
}

// NewScheduler creates a scheduler. defaultRetryAttempts applies to channels
// that do not configure their own.
func NewScheduler(now func() time.Time, defaultRetryAttempts int) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if defaultRetryAttempts <= 0 {
		defaultRetryAttempts = DefaultMaxAttempts
	}
	return &Scheduler{now: now, defaultRetryAttempts: defaultRetryAttempts}
}

// Schedule creates a pending delivery for the plan
func (s *Scheduler) Schedule(p Plan) *domain.Delivery {
	now := s.now()

	maxAttempts := p.Channel.Config.RetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.defaultRetryAttempts
	}

	var address string
	if p.Recipient.Contact != nil {
		address = p.Recipient.Contact[p.Channel.Kind]
	}

	return &domain.Delivery{
		ID:             uuid.New().String(),
		NotificationID: p.NotificationID,
		RuleID:         p.Rule.ID,
		RecipientID:    p.Recipient.ID,
		ChannelID:      p.Channel.ID,
		ChannelKind:    p.Channel.Kind,
		Address:        address,
		Priority:       p.Priority,
		Status:         domain.DeliveryStatusPending,
		MaxAttempts:    maxAttempts,
		ScheduledAt:    ScheduledAt(now, p.Rule.Scheduling, p.Recipient, p.Priority),
		Content:        p.Content.Clone(),
		CreatedAt:      now,
	}
}

// ScheduledAt applies the rule delay, business hours and the recipient's
// quiet hours to now. The hour checks run against the delayed send time.
// Critical deliveries ignore quiet hours.
func ScheduledAt(now time.Time, policy domain.SchedulingPolicy, recipient *domain.Recipient, priority domain.Priority) time.Time {
	at := now

	if policy.Mode != domain.ScheduleImmediate && policy.Delay > 0 {
		at = at.Add(policy.Delay)
	}

	if policy.BusinessHoursOnly {
		local := at.In(domain.LoadLocation(policy.Timezone))
		if local.Hour() < BusinessStartHour || local.Hour() >= BusinessEndHour {
			next := local.AddDate(0, 0, 1)
			at = time.Date(next.Year(), next.Month(), next.Day(), BusinessStartHour, 0, 0, 0, local.Location())
		}
	}

	if recipient != nil && priority != domain.PriorityCritical {
		if quiet := recipient.Preferences.QuietHours; quiet != nil {
			at = afterQuietHours(at, *quiet, recipient.Preferences.Location())
		}
	}
	return at
}

func afterQuietHours(at time.Time, quiet domain.QuietHours, loc *time.Location) time.Time {
	local := at.In(loc)
	if !quiet.Contains(local) {
		return at
	}
	_, end, err := quiet.Bounds()
	if err != nil {
		return at
	}

	resume := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).
		Add(time.Duration(end)*time.Minute + time.Hour)
	if !resume.After(local) {
		resume = resume.AddDate(0, 0, 1)
	}
	return resume
}
