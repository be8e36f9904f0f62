package domain

import (
	"time"
)

// ChannelKind represents the transport family of a channel
type ChannelKind string

const (
	ChannelKindEmail   ChannelKind = "email"
	ChannelKindSMS     ChannelKind = "sms"
	ChannelKindPush    ChannelKind = "push"
	ChannelKindInApp   ChannelKind = "in_app"
	ChannelKindChat    ChannelKind = "chat"
	ChannelKindWebhook ChannelKind = "webhook"
)

// Valid reports whether k is one of the known channel kinds
func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelKindEmail, ChannelKindSMS, ChannelKindPush, ChannelKindInApp, ChannelKindChat, ChannelKindWebhook:
		return true
	}
	return false
}

// CostClass orders kinds by delivery cost. Lower is cheaper.
func (k ChannelKind) CostClass() int {
	switch k {
	case ChannelKindInApp:
		return 0
	case ChannelKindPush, ChannelKindChat, ChannelKindWebhook:
		return 1
	case ChannelKindEmail, ChannelKindSMS:
		return 2
	}
	return 3
}

// HealthStatus represents the health of a channel
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// RateLimit allows Requests sends per Window. Zero Requests disables limiting.
type RateLimit struct {
	Requests int           `json:"requests" yaml:"requests"`
	Window   time.Duration `json:"window" yaml:"window"`
}

// ChannelConfig holds transport settings for a channel
type ChannelConfig struct {
	Endpoint      string            `json:"endpoint,omitempty" yaml:"endpoint"`
	Credentials   map[string]string `json:"credentials,omitempty" yaml:"credentials"`
	Timeout       time.Duration     `json:"timeout,omitempty" yaml:"timeout"`
	RetryAttempts int               `json:"retry_attempts,omitempty" yaml:"retry_attempts"`
	RateLimit     RateLimit         `json:"rate_limit" yaml:"rate_limit"`
}

// Outcome is a single transport result kept in the recent window
type Outcome struct {
	At     time.Time `json:"at"`
	Failed bool      `json:"failed"`
}

// ChannelMetrics holds rolling delivery metrics of a channel
type ChannelMetrics struct {
	Sent            int64         `json:"sent"`
	Delivered       int64         `json:"delivered"`
	Failed          int64         `json:"failed"`
	AvgDeliveryTime time.Duration `json:"avg_delivery_time"`
	Recent          []Outcome     `json:"-"`
}

// Reliability is delivered/sent; channels without history score 0
func (m ChannelMetrics) Reliability() float64 {
	if m.Sent == 0 {
		return 0
	}
	return float64(m.Delivered) / float64(m.Sent)
}

// RecentFailureRate returns failed/sent over outcomes newer than window,
// along with the number of samples considered.
func (m ChannelMetrics) RecentFailureRate(now time.Time, window time.Duration) (float64, int) {
	var samples, failed int
	for _, o := range m.Recent {
		if window > 0 && now.Sub(o.At) > window {
			continue
		}
		samples++
		if o.Failed {
			failed++
		}
	}
	if samples == 0 {
		return 0, 0
	}
	return float64(failed) / float64(samples), samples
}

// WithOutcome returns a copy of m with o appended to the recent window.
// Outcomes older than window are pruned and at most limit are kept.
func (m ChannelMetrics) WithOutcome(o Outcome, window time.Duration, limit int) ChannelMetrics {
	recent := make([]Outcome, 0, len(m.Recent)+1)
	for _, prev := range m.Recent {
		if window > 0 && o.At.Sub(prev.At) > window {
			continue
		}
		recent = append(recent, prev)
	}
	recent = append(recent, o)
	if limit > 0 && len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	m.Recent = recent
	return m
}

// Channel represents a delivery channel definition
type Channel struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Kind            ChannelKind    `json:"kind" yaml:"kind"`
	Enabled         bool           `json:"enabled" yaml:"enabled"`
	Priority        int            `json:"priority" yaml:"priority"`
	Config          ChannelConfig  `json:"config" yaml:"config"`
	Status          HealthStatus   `json:"status" yaml:"status"`
	LastHealthCheck time.Time      `json:"last_health_check" yaml:"-"`
	Metrics         ChannelMetrics `json:"metrics" yaml:"-"`
}

// Clone returns a deep copy of the channel
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	out := *c
	if c.Config.Credentials != nil {
		out.Config.Credentials = make(map[string]string, len(c.Config.Credentials))
		for k, v := range c.Config.Credentials {
			out.Config.Credentials[k] = v
		}
	}
	if c.Metrics.Recent != nil {
		out.Metrics.Recent = append([]Outcome(nil), c.Metrics.Recent...)
	}
	return &out
}

// Redacted returns a copy without credentials, safe to expose over the API
func (c *Channel) Redacted() *Channel {
	out := c.Clone()
	if out != nil {
		out.Config.Credentials = nil
	}
	return out
}

// DeliveryStatus represents the status of a delivery
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// RetryRecord captures one failed attempt and when the next one was planned
type RetryRecord struct {
	Attempt       int       `json:"attempt" bson:"attempt"`
	Error         string    `json:"error" bson:"error"`
	FailedAt      time.Time `json:"failed_at" bson:"failed_at"`
	NextAttemptAt time.Time `json:"next_attempt_at" bson:"next_attempt_at"`
}

// Delivery is one attempt-tracked unit of work: content for one event,
// to one recipient, through one channel.
type Delivery struct {
	ID             string          `json:"id" bson:"_id"`
	NotificationID string          `json:"notification_id" bson:"notification_id"`
	RuleID         string          `json:"rule_id" bson:"rule_id"`
	RecipientID    string          `json:"recipient_id" bson:"recipient_id"`
	ChannelID      string          `json:"channel_id" bson:"channel_id"`
	ChannelKind    ChannelKind     `json:"channel_kind" bson:"channel_kind"`
	Address        string          `json:"address,omitempty" bson:"address,omitempty"`
	Priority       Priority        `json:"priority" bson:"priority"`
	Status         DeliveryStatus  `json:"status" bson:"status"`
	Attempts       int             `json:"attempts" bson:"attempts"`
	MaxAttempts    int             `json:"max_attempts" bson:"max_attempts"`
	Deferrals      int             `json:"deferrals" bson:"deferrals"`
	ScheduledAt    time.Time       `json:"scheduled_at" bson:"scheduled_at"`
	SentAt         *time.Time      `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	FailedAt       *time.Time      `json:"failed_at,omitempty" bson:"failed_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	ResponseTime   time.Duration   `json:"response_time,omitempty" bson:"response_time,omitempty"`
	LastError      string          `json:"last_error,omitempty" bson:"last_error,omitempty"`
	Content        RenderedContent `json:"content" bson:"content"`
	RetryHistory   []RetryRecord   `json:"retry_history,omitempty" bson:"retry_history,omitempty"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
}

// Terminal reports whether the delivery reached a final state
func (d *Delivery) Terminal() bool {
	switch d.Status {
	case DeliveryStatusDelivered, DeliveryStatusCancelled:
		return true
	case DeliveryStatusFailed:
		return d.Attempts >= d.MaxAttempts
	}
	return false
}

// Clone returns a deep copy of the delivery
func (d *Delivery) Clone() *Delivery {
	if d == nil {
		return nil
	}
	out := *d
	out.SentAt = cloneTime(d.SentAt)
	out.DeliveredAt = cloneTime(d.DeliveredAt)
	out.FailedAt = cloneTime(d.FailedAt)
	out.CancelledAt = cloneTime(d.CancelledAt)
	out.Content = d.Content.Clone()
	if d.RetryHistory != nil {
		out.RetryHistory = append([]RetryRecord(nil), d.RetryHistory...)
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ChatBlock is one element of a structured chat message
type ChatBlock struct {
	Type string `json:"type" bson:"type"`
	Text string `json:"text" bson:"text"`
}

// PushEnvelope is the payload shape for push providers
type PushEnvelope struct {
	Title string         `json:"title" bson:"title"`
	Body  string         `json:"body" bson:"body"`
	Data  map[string]any `json:"data,omitempty" bson:"data,omitempty"`
	Badge int            `json:"badge" bson:"badge"`
	Sound string         `json:"sound" bson:"sound"`
}

// RenderedContent is template output for a specific channel and locale
type RenderedContent struct {
	Locale  string        `json:"locale" bson:"locale"`
	Subject string        `json:"subject,omitempty" bson:"subject,omitempty"`
	Body    string        `json:"body" bson:"body"`
	HTML    string        `json:"html,omitempty" bson:"html,omitempty"`
	Blocks  []ChatBlock   `json:"blocks,omitempty" bson:"blocks,omitempty"`
	Push    *PushEnvelope `json:"push,omitempty" bson:"push,omitempty"`
}

// Clone returns a deep copy of the content
func (c RenderedContent) Clone() RenderedContent {
	out := c
	if c.Blocks != nil {
		out.Blocks = append([]ChatBlock(nil), c.Blocks...)
	}
	if c.Push != nil {
		p := *c.Push
		if c.Push.Data != nil {
			p.Data = make(map[string]any, len(c.Push.Data))
			for k, v := range c.Push.Data {
				p.Data[k] = v
			}
		}
		out.Push = &p
	}
	return out
}
