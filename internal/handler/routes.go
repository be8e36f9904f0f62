package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Events     *EventHandler
	Channels   *ChannelHandler
	Rules      *RuleHandler
	Recipients *RecipientHandler
	Feed       *FeedHandler
	Deliveries *DeliveryHandler
	DLQ        *DLQHandler
	Schedules  *ScheduleHandler
}

// RegisterRoutes mounts every handler on the given group
func RegisterRoutes(v1 *gin.RouterGroup, h Handlers) {
	// Events
	events := v1.Group("/events")
	{
		events.POST("", h.Events.SubmitEvent)
		events.POST("/document-expiry", h.Events.DocumentExpiry)
		events.POST("/payroll", h.Events.PayrollProcessed)
	}

	// Channels
	channels := v1.Group("/channels")
	{
		channels.GET("", h.Channels.ListChannels)
		channels.GET("/:id", h.Channels.GetChannel)
		channels.PUT("/:id", h.Channels.PutChannel)
		channels.DELETE("/:id", h.Channels.DeleteChannel)
		channels.PATCH("/:id/enabled", h.Channels.SetEnabled)
	}

	// Channel health
	health := v1.Group("/health/channels")
	{
		health.GET("", h.Channels.GetHealth)
		health.POST("/probe", h.Channels.Probe)
	}

	// Rules and templates
	rules := v1.Group("/rules")
	{
		rules.GET("", h.Rules.ListRules)
		rules.GET("/:id", h.Rules.GetRule)
		rules.PUT("/:id", h.Rules.PutRule)
		rules.DELETE("/:id", h.Rules.DeleteRule)
	}
	templates := v1.Group("/templates")
	{
		templates.GET("", h.Rules.ListTemplates)
		templates.GET("/:id", h.Rules.GetTemplate)
		templates.PUT("/:id", h.Rules.PutTemplate)
	}

	// Recipients, preferences and feed
	recipients := v1.Group("/recipients")
	{
		recipients.GET("", h.Recipients.ListRecipients)
		recipients.GET("/:id", h.Recipients.GetRecipient)
		recipients.PUT("/:id", h.Recipients.PutRecipient)
		recipients.GET("/:id/preferences", h.Recipients.GetPreferences)
		recipients.PUT("/:id/preferences", h.Recipients.UpdatePreferences)
		recipients.GET("/:id/feed", h.Feed.GetFeed)
		recipients.PATCH("/:id/feed/:item_id", h.Feed.UpdateItem)
	}

	// Deliveries
	v1.GET("/stats/deliveries", h.Deliveries.GetStats)
	deliveries := v1.Group("/deliveries")
	{
		deliveries.GET("", h.Deliveries.ListDeliveries)
		deliveries.GET("/:id", h.Deliveries.GetDelivery)
		deliveries.POST("/:id/cancel", h.Deliveries.CancelDelivery)
	}

	// Scheduled events
	scheduled := v1.Group("/schedules")
	{
		scheduled.GET("", h.Schedules.GetSchedules)
		scheduled.PUT("/:id", h.Schedules.PutSchedule)
		scheduled.DELETE("/:id", h.Schedules.DeleteSchedule)
		scheduled.POST("/:id/trigger", h.Schedules.TriggerSchedule)
	}

	// Dead Letter Queue
	dlqRoutes := v1.Group("/dlq")
	{
		dlqRoutes.GET("", h.DLQ.GetDeadLetters)
		dlqRoutes.GET("/:id", h.DLQ.GetDeadLetter)
		dlqRoutes.POST("/:id/retry", h.DLQ.RetryDeadLetter)
		dlqRoutes.DELETE("/:id", h.DLQ.DeleteDeadLetter)
	}
}
