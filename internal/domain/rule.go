package domain

import (
	"fmt"
	"time"
)

// Priority represents the urgency of a rule or event
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Weight orders priorities, critical=4 down to low=1. Unknown values weigh 0.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	return p.Weight() > 0
}

// MaxPriority returns the more urgent of a and b
func MaxPriority(a, b Priority) Priority {
	if b.Weight() > a.Weight() {
		return b
	}
	return a
}

// Operator is a condition comparison operator
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
	OperatorIn          Operator = "in"
	OperatorNotIn       Operator = "not_in"
)

// Valid reports whether o is a known operator
func (o Operator) Valid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan,
		OperatorContains, OperatorIn, OperatorNotIn:
		return true
	}
	return false
}

// LogicalOperator joins a condition with the one after it
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Condition compares a field of the event data with a value.
// Logical governs how the next condition folds into the running result.
type Condition struct {
	Field    string          `json:"field" yaml:"field"`
	Operator Operator        `json:"operator" yaml:"operator"`
	Value    any             `json:"value" yaml:"value"`
	Logical  LogicalOperator `json:"logical_operator,omitempty" yaml:"logical_operator"`
}

// RecipientType discriminates recipient references
type RecipientType string

const (
	RecipientTypeUser       RecipientType = "user"
	RecipientTypeRole       RecipientType = "role"
	RecipientTypeDepartment RecipientType = "department"
	RecipientTypeCustom     RecipientType = "custom"
)

// RecipientRef is a typed reference resolved into recipients at dispatch time
type RecipientRef struct {
	Type RecipientType `json:"type" yaml:"type"`
	ID   string        `json:"id" yaml:"id"`
}

// Throttling caps how often a rule may dispatch. Zero means unlimited.
type Throttling struct {
	MaxPerHour int `json:"max_per_hour,omitempty" yaml:"max_per_hour"`
	MaxPerDay  int `json:"max_per_day,omitempty" yaml:"max_per_day"`
}

// ScheduleMode selects immediate or delayed dispatch
type ScheduleMode string

const (
	ScheduleImmediate ScheduleMode = "immediate"
	ScheduleDelayed   ScheduleMode = "delayed"
)

// SchedulingPolicy controls when deliveries of a rule become due
type SchedulingPolicy struct {
	Mode              ScheduleMode  `json:"mode" yaml:"mode"`
	Delay             time.Duration `json:"delay,omitempty" yaml:"delay"`
	BusinessHoursOnly bool          `json:"business_hours_only,omitempty" yaml:"business_hours_only"`
	Timezone          string        `json:"timezone,omitempty" yaml:"timezone"`
}

// NotificationRule routes events of one type to recipients and channels
type NotificationRule struct {
	ID         string           `json:"id" yaml:"id"`
	Name       string           `json:"name" yaml:"name"`
	EventType  string           `json:"event_type" yaml:"event_type"`
	Conditions []Condition      `json:"conditions,omitempty" yaml:"conditions"`
	Channels   []string         `json:"channels" yaml:"channels"`
	Recipients []RecipientRef   `json:"recipients" yaml:"recipients"`
	TemplateID string           `json:"template_id" yaml:"template_id"`
	Priority   Priority         `json:"priority" yaml:"priority"`
	Throttling Throttling       `json:"throttling" yaml:"throttling"`
	Scheduling SchedulingPolicy `json:"scheduling" yaml:"scheduling"`
	Active     bool             `json:"active" yaml:"active"`
}

// Validate checks structural invariants of the rule
func (r *NotificationRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.EventType == "" {
		return fmt.Errorf("rule %s: event type is required", r.ID)
	}
	if r.TemplateID == "" {
		return fmt.Errorf("rule %s: template id is required", r.ID)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("rule %s: invalid priority %q", r.ID, r.Priority)
	}
	for i, c := range r.Conditions {
		if !c.Operator.Valid() {
			return fmt.Errorf("rule %s: condition %d: unknown operator %q", r.ID, i, c.Operator)
		}
		if c.Logical != "" && c.Logical != LogicalAnd && c.Logical != LogicalOr {
			return fmt.Errorf("rule %s: condition %d: unknown logical operator %q", r.ID, i, c.Logical)
		}
	}
	for i, ref := range r.Recipients {
		switch ref.Type {
		case RecipientTypeUser, RecipientTypeRole, RecipientTypeDepartment, RecipientTypeCustom:
		default:
			return fmt.Errorf("rule %s: recipient %d: unknown type %q", r.ID, i, ref.Type)
		}
	}
	return nil
}

// Clone returns a deep copy of the rule
func (r *NotificationRule) Clone() *NotificationRule {
	if r == nil {
		return nil
	}
	out := *r
	out.Conditions = append([]Condition(nil), r.Conditions...)
	out.Channels = append([]string(nil), r.Channels...)
	out.Recipients = append([]RecipientRef(nil), r.Recipients...)
	return &out
}
