package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vhvplatform/go-notification-engine/internal/delivery"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/health"
	"github.com/vhvplatform/go-notification-engine/internal/registry"
	"github.com/vhvplatform/go-notification-engine/internal/render"
	"github.com/vhvplatform/go-notification-engine/internal/repository"
	"github.com/vhvplatform/go-notification-engine/internal/router"
	"github.com/vhvplatform/go-notification-engine/internal/rules"
	"github.com/vhvplatform/go-notification-engine/internal/shared/config"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/telemetry"
)

// Options tunes the engine loops
type Options struct {
	ProcessorInterval    time.Duration
	HealthInterval       time.Duration
	DefaultLocale        string
	DefaultRetryAttempts int
	Processor            delivery.ProcessorConfig
	Health               health.Config
}

// OptionsFromConfig maps the engine section of the service config
func OptionsFromConfig(cfg config.EngineConfig) Options {
	return Options{
		ProcessorInterval:    cfg.ProcessorInterval,
		HealthInterval:       cfg.HealthInterval,
		DefaultLocale:        cfg.DefaultLocale,
		DefaultRetryAttempts: cfg.DefaultRetryAttempts,
		Processor: delivery.ProcessorConfig{
			BatchSize:         cfg.BatchSize,
			CircuitThreshold:  cfg.CircuitThreshold,
			CircuitMinSamples: cfg.CircuitMinSamples,
			FailureWindow:     cfg.FailureWindow,
		},
		Health: health.Config{
			ProbeTimeout:     cfg.ProbeTimeout,
			FailureThreshold: cfg.CircuitThreshold,
			MinSamples:       cfg.CircuitMinSamples,
			FailureWindow:    cfg.FailureWindow,
		},
	}
}

// Dependencies are the pluggable collaborators of the engine
type Dependencies struct {
	Sender         delivery.Sender
	Prober         health.Prober
	Counter        repository.DispatchCounter
	Preferences    repository.PreferenceStore
	CustomResolver rules.CustomResolver
	Bus            *telemetry.Bus
	Now            func() time.Time
	Log            *logger.Logger
}

// Report describes what ProcessEvent did with one event
type Report struct {
	EventID      string             `json:"event_id"`
	RulesMatched int                `json:"rules_matched"`
	Throttled    int                `json:"throttled"`
	RuleErrors   int                `json:"rule_errors"`
	Deliveries   []*domain.Delivery `json:"deliveries"`
	Skipped      int                `json:"skipped"`
}

// Engine owns the registries and the two background loops
type Engine struct {
	opts Options
	log  *logger.Logger
	now  func() time.Time
	bus  *telemetry.Bus

	channels   *registry.ChannelRegistry
	templates  *registry.TemplateStore
	recipients *registry.RecipientDirectory
	rules      *registry.RuleRegistry
	prefs      repository.PreferenceStore

	evaluator *rules.Evaluator
	resolver  *rules.Resolver
	router    *router.Router
	renderer  *render.Renderer
	scheduler *delivery.Scheduler
	processor *delivery.Processor
	monitor   *health.Monitor

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// New wires an engine from its dependencies
func New(deps Dependencies, opts Options) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Bus == nil {
		deps.Bus = telemetry.NewBus(deps.Log)
	}
	if deps.Counter == nil {
		deps.Counter = repository.NewMemoryDispatchCounter(deps.Now)
	}
	if deps.Preferences == nil {
		deps.Preferences = repository.NewMemoryPreferenceStore()
	}
	if opts.ProcessorInterval <= 0 {
		opts.ProcessorInterval = time.Second
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 30 * time.Second
	}

	e := &Engine{
		opts:       opts,
		log:        deps.Log,
		now:        deps.Now,
		bus:        deps.Bus,
		channels:   registry.NewChannelRegistry(),
		templates:  registry.NewTemplateStore(),
		recipients: registry.NewRecipientDirectory(),
		rules:      registry.NewRuleRegistry(),
		prefs:      deps.Preferences,
	}

	throttler := rules.NewThrottler(deps.Counter, deps.Now)
	e.evaluator = rules.NewEvaluator(e.rules, throttler, deps.Log)
	e.resolver = rules.NewResolver(e.recipients, deps.CustomResolver, deps.Log)
	e.router = router.New(e.channels)
	e.renderer = render.New(opts.DefaultLocale)
	e.scheduler = delivery.NewScheduler(deps.Now, opts.DefaultRetryAttempts)
	e.processor = delivery.NewProcessor(e.channels, deps.Sender, deps.Bus, opts.Processor, deps.Now, deps.Log)
	e.monitor = health.NewMonitor(e.channels, deps.Prober, deps.Bus, opts.Health, deps.Now, deps.Log)
	return e
}

// Bus returns the telemetry bus
func (e *Engine) Bus() *telemetry.Bus { return e.bus }

// Now returns the engine clock reading
func (e *Engine) Now() time.Time { return e.now() }

// Processor returns the delivery processor
func (e *Engine) Processor() *delivery.Processor { return e.processor }

// Subscribe registers a telemetry listener
func (e *Engine) Subscribe(name string, fn telemetry.Listener) (unsubscribe func()) {
	return e.bus.Subscribe(name, fn)
}

// SubmitEvent processes an event and never reports failure to the caller
func (e *Engine) SubmitEvent(ctx context.Context, event domain.NotificationEvent) {
	if _, err := e.ProcessEvent(ctx, event); err != nil {
		e.log.Error("Event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"source", event.Source,
			"data", event.Data,
			"error", err,
		)
	}
}

// ProcessEvent evaluates rules for the event and schedules the resulting
// deliveries. Transport sends happen later on processor ticks.
func (e *Engine) ProcessEvent(ctx context.Context, event domain.NotificationEvent) (report *Report, err error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Metadata.Timestamp.IsZero() {
		event.Metadata.Timestamp = e.now()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing event: %v", r)
			report = nil
		}
		processed := domain.NotificationProcessed{EventID: event.ID, EventType: event.Type, Event: event, At: e.now()}
		if report != nil {
			processed.RulesMatched = report.RulesMatched
			processed.Deliveries = len(report.Deliveries)
		}
		if err != nil {
			processed.Error = err.Error()
		}
		e.bus.Publish(telemetry.NotificationProcessed, processed)
	}()

	if verr := event.Validate(); verr != nil {
		return nil, errors.NewValidationError("invalid event", verr)
	}

	result := e.evaluator.Match(ctx, event)
	report = &Report{
		EventID:      event.ID,
		RulesMatched: len(result.Matches),
		Throttled:    result.Throttled,
		RuleErrors:   result.Errors,
		Deliveries:   make([]*domain.Delivery, 0),
	}

	for _, match := range result.Matches {
		e.dispatch(ctx, event, match, report)
	}

	e.log.Info("Event processed",
		"event_id", event.ID,
		"event_type", event.Type,
		"rules_matched", report.RulesMatched,
		"throttled", report.Throttled,
		"deliveries", len(report.Deliveries),
	)
	return report, nil
}

// dispatch creates deliveries for one matched rule. Failures abort only the
// affected delivery.
func (e *Engine) dispatch(ctx context.Context, event domain.NotificationEvent, match rules.Match, report *Report) {
	rule := match.Rule
	log := e.log.With("event_id", event.ID, "rule_id", rule.ID)

	tmpl, ok := e.templates.Get(rule.TemplateID)
	if !ok || !tmpl.Active {
		log.Warn("Template unavailable, skipping rule", "template_id", rule.TemplateID)
		report.Skipped++
		return
	}

	for _, recipient := range e.resolver.Resolve(ctx, rule.Recipients, event) {
		channels := e.router.SelectChannels(rule.Channels, recipient, match.Priority)
		if len(channels) == 0 {
			log.Info("No usable channel for recipient", "recipient_id", recipient.ID)
			continue
		}

		locale := recipient.Preferences.Locale(e.renderer.DefaultLocale())
		for _, ch := range channels {
			if !tmpl.Supports(ch.Kind) {
				log.Warn("Template does not support channel", "template_id", tmpl.ID, "channel_id", ch.ID)
				report.Skipped++
				continue
			}
			content, err := e.renderer.Render(tmpl, ch.Kind, locale, event.Data, e.now())
			if err != nil {
				log.Error("Failed to render template", "template_id", tmpl.ID, "channel_id", ch.ID, "error", err)
				report.Skipped++
				continue
			}

			d := e.scheduler.Schedule(delivery.Plan{
				NotificationID: event.ID,
				Rule:           rule,
				Recipient:      recipient,
				Channel:        ch,
				Priority:       match.Priority,
				Content:        content,
			})
			if err := e.processor.Enqueue(d); err != nil {
				log.Error("Failed to enqueue delivery", "delivery_id", d.ID, "error", err)
				report.Skipped++
				continue
			}
			report.Deliveries = append(report.Deliveries, d)
		}
	}
}

// RegisterChannel adds or replaces a channel
func (e *Engine) RegisterChannel(ch *domain.Channel) error {
	return e.channels.Register(ch)
}

// RemoveChannel deletes a channel
func (e *Engine) RemoveChannel(id string) error {
	if !e.channels.Remove(id) {
		return errors.NewNotFoundError("channel not found: "+id, nil)
	}
	return nil
}

// SetChannelEnabled toggles a channel
func (e *Engine) SetChannelEnabled(id string, enabled bool) (*domain.Channel, error) {
	return e.channels.SetEnabled(id, enabled)
}

// GetChannel returns a channel without credentials
func (e *Engine) GetChannel(id string) (*domain.Channel, error) {
	ch, ok := e.channels.Get(id)
	if !ok {
		return nil, errors.NewNotFoundError("channel not found: "+id, nil)
	}
	return ch.Redacted(), nil
}

// ListChannels returns all channels without credentials
func (e *Engine) ListChannels() []*domain.Channel {
	list := e.channels.List()
	for i, ch := range list {
		list[i] = ch.Redacted()
	}
	return list
}

// RegisterRule adds or replaces a rule
func (e *Engine) RegisterRule(rule *domain.NotificationRule) error {
	return e.rules.Register(rule)
}

// RemoveRule deletes a rule
func (e *Engine) RemoveRule(id string) error {
	if !e.rules.Remove(id) {
		return errors.NewNotFoundError("rule not found: "+id, nil)
	}
	return nil
}

// GetRule returns a rule
func (e *Engine) GetRule(id string) (*domain.NotificationRule, error) {
	rule, ok := e.rules.Get(id)
	if !ok {
		return nil, errors.NewNotFoundError("rule not found: "+id, nil)
	}
	return rule, nil
}

// ListRules returns all rules
func (e *Engine) ListRules() []*domain.NotificationRule {
	return e.rules.List()
}

// RegisterTemplate stores a new template version
func (e *Engine) RegisterTemplate(tmpl *domain.NotificationTemplate) (*domain.NotificationTemplate, error) {
	return e.templates.Register(tmpl)
}

// GetTemplate returns the latest version of a template
func (e *Engine) GetTemplate(id string) (*domain.NotificationTemplate, error) {
	tmpl, ok := e.templates.Get(id)
	if !ok {
		return nil, errors.NewNotFoundError("template not found: "+id, nil)
	}
	return tmpl, nil
}

// ListTemplates returns the latest version of every template
func (e *Engine) ListTemplates() []*domain.NotificationTemplate {
	return e.templates.List()
}

// RegisterRecipient adds or replaces a recipient. Preferences saved
// earlier through UpdatePreferences take precedence over the record's own.
func (e *Engine) RegisterRecipient(ctx context.Context, r *domain.Recipient) error {
	if r == nil || r.ID == "" {
		return errors.NewValidationError("recipient id is required", nil)
	}
	rec := r.Clone()
	saved, err := e.prefs.Get(ctx, rec.ID)
	switch {
	case err == nil:
		rec.Preferences = saved.Clone()
	case !errors.Is(err, errors.ErrNotFound):
		return errors.NewInternalError("failed to load preferences", err)
	}
	return e.recipients.Register(rec)
}

// GetRecipient returns a recipient
func (e *Engine) GetRecipient(id string) (*domain.Recipient, error) {
	r, ok := e.recipients.Get(id)
	if !ok {
		return nil, errors.NewNotFoundError("recipient not found: "+id, nil)
	}
	return r, nil
}

// ListRecipients returns all recipients
func (e *Engine) ListRecipients() []*domain.Recipient {
	return e.recipients.List()
}

// GetPreferences returns the stored preferences of a recipient
func (e *Engine) GetPreferences(ctx context.Context, recipientID string) (*domain.Preferences, error) {
	prefs, err := e.prefs.Get(ctx, recipientID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	r, ok := e.recipients.Get(recipientID)
	if !ok {
		return nil, errors.NewNotFoundError("recipient not found: "+recipientID, nil)
	}
	p := r.Preferences.Clone()
	p.RecipientID = recipientID
	return &p, nil
}

// UpdatePreferences persists preferences and applies them to routing
func (e *Engine) UpdatePreferences(ctx context.Context, recipientID string, prefs domain.Preferences) (*domain.Preferences, error) {
	if _, ok := e.recipients.Get(recipientID); !ok {
		return nil, errors.NewNotFoundError("recipient not found: "+recipientID, nil)
	}
	if prefs.QuietHours != nil {
		if _, _, err := prefs.QuietHours.Bounds(); err != nil {
			return nil, errors.NewValidationError("invalid quiet hours", err)
		}
	}
	for _, id := range prefs.Channels {
		if _, ok := e.channels.Get(id); !ok {
			return nil, errors.NewValidationError("unknown channel: "+id, nil)
		}
	}

	prefs.RecipientID = recipientID
	prefs.UpdatedAt = e.now()
	if err := e.prefs.Save(ctx, &prefs); err != nil {
		return nil, errors.NewInternalError("failed to save preferences", err)
	}
	if err := e.recipients.SetPreferences(recipientID, prefs); err != nil {
		return nil, err
	}
	out := prefs.Clone()
	return &out, nil
}

// CancelDelivery cancels a pending delivery
func (e *Engine) CancelDelivery(id string) (*domain.Delivery, error) {
	return e.processor.Cancel(id)
}

// GetDelivery returns a delivery snapshot
func (e *Engine) GetDelivery(id string) (*domain.Delivery, error) {
	d, ok := e.processor.Get(id)
	if !ok {
		return nil, errors.NewNotFoundError("delivery not found: "+id, nil)
	}
	return d, nil
}

// ListDeliveries returns deliveries, optionally filtered by status
func (e *Engine) ListDeliveries(status domain.DeliveryStatus) []*domain.Delivery {
	return e.processor.List(status)
}

// GetDeliveryStats aggregates delivery counts
func (e *Engine) GetDeliveryStats() domain.DeliveryStats {
	return e.processor.Stats()
}

// GetChannelHealth returns a health snapshot per channel ordered by id
func (e *Engine) GetChannelHealth() []domain.ChannelHealth {
	channels := e.channels.List()
	out := make([]domain.ChannelHealth, 0, len(channels))
	for _, ch := range channels {
		out = append(out, domain.HealthOf(ch))
	}
	return out
}

// Tick runs one processor pass
func (e *Engine) Tick(ctx context.Context) int {
	return e.processor.Tick(ctx)
}

// ProbeChannels runs one health pass
func (e *Engine) ProbeChannels(ctx context.Context) []domain.ChannelHealthChange {
	return e.monitor.ProbeAll(ctx)
}

// Start launches the processor and health loops
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.running.Add(2)
	go func() {
		defer e.running.Done()
		e.processor.Run(loopCtx, e.opts.ProcessorInterval)
	}()
	go func() {
		defer e.running.Done()
		e.monitor.Run(loopCtx, e.opts.HealthInterval)
	}()
	e.log.Info("Engine started",
		"processor_interval", e.opts.ProcessorInterval,
		"health_interval", e.opts.HealthInterval,
	)
}

// Stop halts the loops and waits for in-flight work
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	e.running.Wait()
	e.log.Info("Engine stopped")
}
