package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// Submitter accepts events produced by schedules
type Submitter interface {
	SubmitEvent(ctx context.Context, event domain.NotificationEvent)
}

type entry struct {
	sched   domain.ScheduledEvent
	cronID  cron.EntryID
	lastRun *time.Time
}

// EventScheduler submits events on cron schedules
type EventScheduler struct {
	cron      *cron.Cron
	parser    cron.Parser
	submitter Submitter
	now       func() time.Time
	log       *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewEventScheduler creates a new event scheduler
func NewEventScheduler(submitter Submitter, now func() time.Time, log *logger.Logger) *EventScheduler {
	if now == nil {
		now = time.Now
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &EventScheduler{
		cron:      cron.New(cron.WithParser(parser)),
		parser:    parser,
		submitter: submitter,
		now:       now,
		log:       log,
		entries:   make(map[string]*entry),
	}
}

// Start starts the cron loop
func (s *EventScheduler) Start() {
	s.log.Info("Starting event scheduler", "schedules", s.Len())
	s.cron.Start()
}

// Stop stops the cron loop and waits for running jobs
func (s *EventScheduler) Stop() {
	s.log.Info("Stopping event scheduler")
	<-s.cron.Stop().Done()
}

// Register adds or replaces a schedule. Inactive schedules are remembered
// but never fire.
func (s *EventScheduler) Register(sched domain.ScheduledEvent) error {
	if sched.ID == "" {
		return errors.NewValidationError("schedule id is required", nil)
	}
	if err := sched.Event.Validate(); err != nil {
		return errors.NewValidationError(fmt.Sprintf("schedule %s: invalid event", sched.ID), err)
	}
	if _, err := s.parser.Parse(sched.Schedule); err != nil {
		return errors.NewValidationError(fmt.Sprintf("schedule %s: invalid cron expression %q", sched.ID, sched.Schedule), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[sched.ID]; ok && old.cronID != 0 {
		s.cron.Remove(old.cronID)
	}

	e := &entry{sched: sched}
	if sched.Active {
		id := sched.ID
		cronID, err := s.cron.AddFunc(sched.Schedule, func() { s.fire(context.Background(), id) })
		if err != nil {
			return errors.NewValidationError(fmt.Sprintf("schedule %s: invalid cron expression %q", sched.ID, sched.Schedule), err)
		}
		e.cronID = cronID
	}
	s.entries[sched.ID] = e

	s.log.Info("Registered schedule", "id", sched.ID, "schedule", sched.Schedule, "event_type", sched.Event.Type, "active", sched.Active)
	return nil
}

// Remove deletes a schedule
func (s *EventScheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	if e.cronID != 0 {
		s.cron.Remove(e.cronID)
	}
	delete(s.entries, id)
	return true
}

// Trigger submits the event of a schedule immediately
func (s *EventScheduler) Trigger(ctx context.Context, id string) error {
	if !s.fire(ctx, id) {
		return errors.NewNotFoundError("schedule not found: "+id, nil)
	}
	return nil
}

// List returns all schedules ordered by id, with their last and next runs
func (s *EventScheduler) List() []domain.ScheduledEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ScheduledEvent, 0, len(s.entries))
	for _, e := range s.entries {
		sched := e.sched
		sched.LastRunAt = e.lastRun
		if e.cronID != 0 {
			if next := s.cron.Entry(e.cronID).Next; !next.IsZero() {
				sched.NextRunAt = &next
			}
		}
		out = append(out, sched)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered schedules
func (s *EventScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fire submits a fresh copy of the scheduled event
func (s *EventScheduler) fire(ctx context.Context, id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	e.lastRun = &now
	event := e.sched.Event
	s.mu.Unlock()

	data := make(map[string]any, len(event.Data))
	for k, v := range event.Data {
		data[k] = v
	}
	event.Data = data
	event.ID = uuid.New().String()
	event.Metadata.Timestamp = now
	if event.Source == "" {
		event.Source = "scheduler"
	}
	event.CorrelationID = id

	s.log.Info("Executing scheduled event", "id", id, "event_id", event.ID, "event_type", event.Type)
	s.submitter.SubmitEvent(ctx, event)
	return true
}
