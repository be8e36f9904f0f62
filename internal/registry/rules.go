package registry

import (
	"sort"
	"sync"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
)

// RuleRegistry holds notification rules
type RuleRegistry struct {
	mu    sync.RWMutex
	rules map[string]*domain.NotificationRule
}

// NewRuleRegistry creates an empty rule registry
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{rules: make(map[string]*domain.NotificationRule)}
}

// Register validates and stores a rule, replacing any rule with the same id
func (r *RuleRegistry) Register(rule *domain.NotificationRule) error {
	if rule == nil {
		return errors.NewValidationError("rule is required", nil)
	}
	if err := rule.Validate(); err != nil {
		return errors.NewValidationError(err.Error(), err)
	}
	next := rule.Clone()

	r.mu.Lock()
	r.rules[next.ID] = next
	r.mu.Unlock()
	return nil
}

// Remove deletes a rule
func (r *RuleRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return false
	}
	delete(r.rules, id)
	return true
}

// Get looks up a rule by id
func (r *RuleRegistry) Get(id string) (*domain.NotificationRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	return rule, ok
}

// ActiveFor returns active rules for eventType ordered by id
func (r *RuleRegistry) ActiveFor(eventType string) []*domain.NotificationRule {
	r.mu.RLock()
	out := make([]*domain.NotificationRule, 0)
	for _, rule := range r.rules {
		if rule.Active && rule.EventType == eventType {
			out = append(out, rule)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// List returns every rule ordered by id
func (r *RuleRegistry) List() []*domain.NotificationRule {
	r.mu.RLock()
	out := make([]*domain.NotificationRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
