package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OutboxEventStatus represents the processing status of an outbox event
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// OutboxEventType is the routing key used when relaying telemetry
type OutboxEventType string

const (
	OutboxDeliveryUpdated       OutboxEventType = "delivery.updated"
	OutboxChannelHealthChanged  OutboxEventType = "channel.health_changed"
	OutboxNotificationProcessed OutboxEventType = "notification.processed"
)

// OutboxEvent is a telemetry event waiting to be relayed to the message broker
type OutboxEvent struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AggregateType string             `bson:"aggregateType" json:"aggregateType"`
	AggregateID   string             `bson:"aggregateId" json:"aggregateId"`
	EventType     OutboxEventType    `bson:"eventType" json:"eventType"`
	Payload       any                `bson:"payload" json:"payload"`
	Status        OutboxEventStatus  `bson:"status" json:"status"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	ProcessedAt   *time.Time         `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	ErrorCount    int                `bson:"errorCount" json:"errorCount"`
	LastError     string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
}

// ChannelHealthChange is the payload of channel-health-changed
type ChannelHealthChange struct {
	ChannelID string       `json:"channel_id" bson:"channel_id"`
	Channel   *Channel     `json:"channel,omitempty" bson:"channel,omitempty"`
	Previous  HealthStatus `json:"previous" bson:"previous"`
	Current   HealthStatus `json:"current" bson:"current"`
	At        time.Time    `json:"at" bson:"at"`
}

// NotificationProcessed is the payload of notification-processed
type NotificationProcessed struct {
	EventID      string            `json:"event_id" bson:"event_id"`
	EventType    string            `json:"event_type" bson:"event_type"`
	Event        NotificationEvent `json:"event" bson:"event"`
	RulesMatched int               `json:"rules_matched" bson:"rules_matched"`
	Deliveries   int               `json:"deliveries" bson:"deliveries"`
	Error        string            `json:"error,omitempty" bson:"error,omitempty"`
	At           time.Time         `json:"at" bson:"at"`
}
