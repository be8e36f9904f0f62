// Package catalog loads channels, templates, recipients, rules and
// schedules from a YAML file into a running engine.
package catalog

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// Catalog is the on-disk bootstrap document
type Catalog struct {
	Channels   []*domain.Channel              `yaml:"channels"`
	Templates  []*domain.NotificationTemplate `yaml:"templates"`
	Recipients []*domain.Recipient            `yaml:"recipients"`
	Rules      []*domain.NotificationRule     `yaml:"rules"`
	Schedules  []domain.ScheduledEvent        `yaml:"schedules"`
}

// Engine is the registration surface a catalog is applied to
type Engine interface {
	RegisterChannel(ch *domain.Channel) error
	RegisterTemplate(tmpl *domain.NotificationTemplate) (*domain.NotificationTemplate, error)
	RegisterRecipient(ctx context.Context, r *domain.Recipient) error
	RegisterRule(rule *domain.NotificationRule) error
}

// Scheduler receives the catalog's cron schedules
type Scheduler interface {
	Register(sched domain.ScheduledEvent) error
}

// Summary counts what an Apply call registered
type Summary struct {
	Channels   int
	Templates  int
	Recipients int
	Rules      int
	Schedules  int
}

// Parse decodes a catalog. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return &c, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &c, nil
}

// LoadFile reads and parses the catalog at path
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Apply registers every entry. Channels and templates go first so rules and
// recipient preferences can reference them. Entries that fail are skipped
// and reported together; the rest are still applied.
func (c *Catalog) Apply(ctx context.Context, engine Engine, scheduler Scheduler) (Summary, error) {
	var (
		sum  Summary
		errs []error
	)

	for _, ch := range c.Channels {
		if err := engine.RegisterChannel(ch); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", ch.ID, err))
			continue
		}
		sum.Channels++
	}
	for _, tmpl := range c.Templates {
		if _, err := engine.RegisterTemplate(tmpl); err != nil {
			errs = append(errs, fmt.Errorf("template %s: %w", tmpl.ID, err))
			continue
		}
		sum.Templates++
	}
	for _, r := range c.Recipients {
		if err := engine.RegisterRecipient(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("recipient %s: %w", r.ID, err))
			continue
		}
		sum.Recipients++
	}
	for _, rule := range c.Rules {
		if err := engine.RegisterRule(rule); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))
			continue
		}
		sum.Rules++
	}
	if scheduler != nil {
		for _, sched := range c.Schedules {
			if err := scheduler.Register(sched); err != nil {
				errs = append(errs, fmt.Errorf("schedule %s: %w", sched.ID, err))
				continue
			}
			sum.Schedules++
		}
	}

	return sum, stderrors.Join(errs...)
}
