package domain

import (
	"time"
)

// ScheduledEvent submits a copy of Event every time Schedule fires.
// Schedule uses the standard five-field cron syntax or descriptors such as @daily.
type ScheduledEvent struct {
	ID        string            `json:"id" yaml:"id"`
	Schedule  string            `json:"schedule" yaml:"schedule"`
	Event     NotificationEvent `json:"event" yaml:"event"`
	Active    bool              `json:"active" yaml:"active"`
	LastRunAt *time.Time        `json:"last_run_at,omitempty" yaml:"-"`
	NextRunAt *time.Time        `json:"next_run_at,omitempty" yaml:"-"`
}
