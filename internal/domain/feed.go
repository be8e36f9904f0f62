package domain

import "time"

// FeedItem is an in-app notification stored for a recipient
type FeedItem struct {
	ID             string          `json:"id" bson:"_id"`
	RecipientID    string          `json:"recipient_id" bson:"recipient_id"`
	DeliveryID     string          `json:"delivery_id" bson:"delivery_id"`
	NotificationID string          `json:"notification_id" bson:"notification_id"`
	Priority       Priority        `json:"priority" bson:"priority"`
	Content        RenderedContent `json:"content" bson:"content"`
	Read           bool            `json:"read" bson:"read"`
	Starred        bool            `json:"starred" bson:"starred"`
	Archived       bool            `json:"archived" bson:"archived"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
	ReadAt         *time.Time      `json:"read_at,omitempty" bson:"read_at,omitempty"`
}

// FeedFilter narrows a feed listing
type FeedFilter struct {
	UnreadOnly      bool
	IncludeArchived bool
	Limit           int
	Offset          int
}

// DeadLetter records a delivery that exhausted its attempts
type DeadLetter struct {
	ID              string     `json:"id" bson:"_id"`
	Delivery        Delivery   `json:"delivery" bson:"delivery"`
	Error           string     `json:"error" bson:"error"`
	FailedAt        time.Time  `json:"failed_at" bson:"failed_at"`
	RetriedAt       *time.Time `json:"retried_at,omitempty" bson:"retried_at,omitempty"`
	RetryDeliveryID string     `json:"retry_delivery_id,omitempty" bson:"retry_delivery_id,omitempty"`
}
