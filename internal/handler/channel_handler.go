package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/engine"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// ChannelHandler manages delivery channels and exposes their health
type ChannelHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewChannelHandler creates a new channel handler
func NewChannelHandler(engine *engine.Engine, log *logger.Logger) *ChannelHandler {
	return &ChannelHandler{
		engine: engine,
		log:    log,
	}
}

// ListChannels lists channels without credentials
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	channels := h.engine.ListChannels()
	c.JSON(http.StatusOK, gin.H{
		"data":  channels,
		"total": len(channels),
	})
}

// GetChannel returns one channel
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	ch, err := h.engine.GetChannel(c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to get channel", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ch})
}

// PutChannel registers or replaces the channel named in the path
func (h *ChannelHandler) PutChannel(c *gin.Context) {
	var ch domain.Channel
	if err := c.ShouldBindJSON(&ch); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	ch.ID = c.Param("id")

	if err := h.engine.RegisterChannel(&ch); err != nil {
		respondError(c, h.log, "Failed to register channel", err)
		return
	}

	h.log.Info("Channel registered", "channel_id", ch.ID, "kind", ch.Kind)
	c.JSON(http.StatusOK, gin.H{
		"message": "Channel registered successfully",
		"data":    ch.Redacted(),
	})
}

// DeleteChannel removes a channel
func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RemoveChannel(id); err != nil {
		respondError(c, h.log, "Failed to delete channel", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Channel deleted successfully"})
}

// SetEnabled enables or disables a channel
func (h *ChannelHandler) SetEnabled(c *gin.Context) {
	var req domain.SetChannelEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	ch, err := h.engine.SetChannelEnabled(c.Param("id"), *req.Enabled)
	if err != nil {
		respondError(c, h.log, "Failed to update channel", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Channel updated successfully",
		"data":    ch.Redacted(),
	})
}

// GetHealth returns the health snapshot of every channel
func (h *ChannelHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.engine.GetChannelHealth()})
}

// Probe runs a health pass immediately and returns the status changes
func (h *ChannelHandler) Probe(c *gin.Context) {
	changes := h.engine.ProbeChannels(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"data":  changes,
		"total": len(changes),
	})
}
