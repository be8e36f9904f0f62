package domain

import (
	"fmt"
	"time"
)

// Well-known event types produced by upstream business systems
const (
	EventTypeDocumentExpiryCheck = "document_expiry_check"
	EventTypePayrollProcessed    = "payroll_processed"
)

// EventMetadata carries provenance of an incoming event
type EventMetadata struct {
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationEvent is an inbound business event that may trigger rules
type NotificationEvent struct {
	ID            string         `json:"id" yaml:"id"`
	Type          string         `json:"type" yaml:"type" binding:"required"`
	Source        string         `json:"source" yaml:"source"`
	Data          map[string]any `json:"data" yaml:"data"`
	Metadata      EventMetadata  `json:"metadata" yaml:"-"`
	Priority      Priority       `json:"priority" yaml:"priority"`
	CorrelationID string         `json:"correlation_id,omitempty" yaml:"correlation_id"`
}

// PriorityForDaysRemaining maps days until a document expires to a priority
func PriorityForDaysRemaining(days int) Priority {
	switch {
	case days <= 7:
		return PriorityCritical
	case days <= 14:
		return PriorityHigh
	case days <= 30:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// NewDocumentExpiryEvent builds a document_expiry_check event for one document
func NewDocumentExpiryEvent(id, documentID, documentType, ownerID string, daysRemaining int, now time.Time) NotificationEvent {
	return NotificationEvent{
		ID:     id,
		Type:   EventTypeDocumentExpiryCheck,
		Source: "document-service",
		Data: map[string]any{
			"documentId":    documentID,
			"documentType":  documentType,
			"userId":        ownerID,
			"daysRemaining": daysRemaining,
		},
		Metadata: EventMetadata{Timestamp: now},
		Priority: PriorityForDaysRemaining(daysRemaining),
	}
}

// NewPayrollProcessedEvent builds a payroll_processed event for one employee
func NewPayrollProcessedEvent(id, employeeID, period string, netAmount float64, now time.Time) NotificationEvent {
	return NotificationEvent{
		ID:     id,
		Type:   EventTypePayrollProcessed,
		Source: "payroll-service",
		Data: map[string]any{
			"employeeId": employeeID,
			"period":     period,
			"netAmount":  netAmount,
		},
		Metadata: EventMetadata{Timestamp: now},
		Priority: PriorityMedium,
	}
}

// Validate checks the minimum shape of an event
func (e *NotificationEvent) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if e.Priority != "" && !e.Priority.Valid() {
		return fmt.Errorf("invalid event priority %q", e.Priority)
	}
	return nil
}
