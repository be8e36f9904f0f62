package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/registry"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// Match is a rule that passed conditions and throttling for one event
type Match struct {
	Rule     *domain.NotificationRule
	Priority domain.Priority
}

// Result summarizes one evaluation pass
type Result struct {
	Matches   []Match
	Throttled int
	Errors    int
}

// Evaluator selects the rules an event should dispatch
type Evaluator struct {
	rules     *registry.RuleRegistry
	throttler *Throttler
	log       *logger.Logger
}

// NewEvaluator creates an evaluator
func NewEvaluator(rules *registry.RuleRegistry, throttler *Throttler, log *logger.Logger) *Evaluator {
	return &Evaluator{rules: rules, throttler: throttler, log: log}
}

// Match evaluates every active rule of the event's type. A failing rule is
// logged and skipped. Matches are ordered by dispatch priority, highest first.
func (e *Evaluator) Match(ctx context.Context, event domain.NotificationEvent) Result {
	var res Result
	for _, rule := range e.rules.ActiveFor(event.Type) {
		ok, reason, err := e.evaluate(ctx, rule.Clone(), event)
		switch {
		case err != nil:
			res.Errors++
			e.log.Error("Rule evaluation failed", "rule_id", rule.ID, "event_id", event.ID, "error", err)
		case reason != "":
			res.Throttled++
			e.log.Info("Rule throttled", "rule_id", rule.ID, "event_id", event.ID, "reason", reason)
		case ok:
			res.Matches = append(res.Matches, Match{
				Rule:     rule.Clone(),
				Priority: domain.MaxPriority(rule.Priority, event.Priority),
			})
		}
	}

	sort.SliceStable(res.Matches, func(i, j int) bool {
		return res.Matches[i].Priority.Weight() > res.Matches[j].Priority.Weight()
	})
	return res
}

func (e *Evaluator) evaluate(ctx context.Context, rule *domain.NotificationRule, event domain.NotificationEvent) (ok bool, throttled string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating rule: %v", r)
		}
	}()

	if rule.EventType != event.Type {
		return false, "", nil
	}
	ok, err = Evaluate(rule.Conditions, event.Data)
	if err != nil || !ok {
		return false, "", err
	}
	if e.throttler == nil {
		return true, "", nil
	}
	throttled, err = e.throttler.Reserve(ctx, rule)
	if err != nil || throttled != "" {
		return false, throttled, err
	}
	return true, "", nil
}
