package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/repository"
)

// Throttler enforces per-rule dispatch limits over calendar hour and day
// windows in the rule's timezone.
type Throttler struct {
	counter repository.DispatchCounter
	now     func() time.Time
	mu      sync.Mutex
}

// NewThrottler creates a throttler backed by counter
func NewThrottler(counter repository.DispatchCounter, now func() time.Time) *Throttler {
	if now == nil {
		now = time.Now
	}
	return &Throttler{counter: counter, now: now}
}

func windowKeys(rule *domain.NotificationRule, at time.Time) (hourKey, dayKey string, hourEnd, dayEnd time.Time) {
	local := at.In(domain.LoadLocation(rule.Scheduling.Timezone))
	hourStart := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, local.Location())
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())

	hourKey = fmt.Sprintf("rule:%s:hour:%s", rule.ID, hourStart.Format("2006010215"))
	dayKey = fmt.Sprintf("rule:%s:day:%s", rule.ID, dayStart.Format("20060102"))
	return hourKey, dayKey, hourStart.Add(time.Hour), dayStart.AddDate(0, 0, 1)
}

// Reserve checks the rule's limits and, when under both, counts one
// dispatch. It returns a non-empty reason when the rule is throttled.
func (t *Throttler) Reserve(ctx context.Context, rule *domain.NotificationRule) (reason string, err error) {
	limits := rule.Throttling
	if limits.MaxPerHour <= 0 && limits.MaxPerDay <= 0 {
		return "", nil
	}

	hourKey, dayKey, hourEnd, dayEnd := windowKeys(rule, t.now())

	t.mu.Lock()
	defer t.mu.Unlock()

	if limits.MaxPerHour > 0 {
		n, err := t.counter.Get(ctx, hourKey)
		if err != nil {
			return "", fmt.Errorf("read hourly dispatch count: %w", err)
		}
		if n >= limits.MaxPerHour {
			return fmt.Sprintf("hourly limit %d reached", limits.MaxPerHour), nil
		}
	}
	if limits.MaxPerDay > 0 {
		n, err := t.counter.Get(ctx, dayKey)
		if err != nil {
			return "", fmt.Errorf("read daily dispatch count: %w", err)
		}
		if n >= limits.MaxPerDay {
			return fmt.Sprintf("daily limit %d reached", limits.MaxPerDay), nil
		}
	}

	if _, err := t.counter.Increment(ctx, hourKey, hourEnd); err != nil {
		return "", fmt.Errorf("record hourly dispatch: %w", err)
	}
	if _, err := t.counter.Increment(ctx, dayKey, dayEnd); err != nil {
		return "", fmt.Errorf("record daily dispatch: %w", err)
	}
	return "", nil
}
