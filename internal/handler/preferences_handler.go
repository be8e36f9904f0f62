package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/engine"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// RecipientHandler manages recipients and their notification preferences
type RecipientHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewRecipientHandler creates a new recipient handler
func NewRecipientHandler(engine *engine.Engine, log *logger.Logger) *RecipientHandler {
	return &RecipientHandler{
		engine: engine,
		log:    log,
	}
}

// ListRecipients lists the recipient directory
func (h *RecipientHandler) ListRecipients(c *gin.Context) {
	recipients := h.engine.ListRecipients()
	c.JSON(http.StatusOK, gin.H{
		"data":  recipients,
		"total": len(recipients),
	})
}

// GetRecipient returns one recipient
func (h *RecipientHandler) GetRecipient(c *gin.Context) {
	r, err := h.engine.GetRecipient(c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to get recipient", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": r})
}

// PutRecipient registers or replaces the recipient named in the path
func (h *RecipientHandler) PutRecipient(c *gin.Context) {
	var r domain.Recipient
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	r.ID = c.Param("id")

	if err := h.engine.RegisterRecipient(c.Request.Context(), &r); err != nil {
		respondError(c, h.log, "Failed to register recipient", err)
		return
	}

	stored, err := h.engine.GetRecipient(r.ID)
	if err != nil {
		respondError(c, h.log, "Failed to register recipient", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Recipient registered successfully",
		"data":    stored,
	})
}

// GetPreferences retrieves recipient notification preferences
func (h *RecipientHandler) GetPreferences(c *gin.Context) {
	recipientID := c.Param("id")

	prefs, err := h.engine.GetPreferences(c.Request.Context(), recipientID)
	if err != nil {
		respondError(c, h.log, "Failed to get preferences", err)
		return
	}

	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences updates recipient notification preferences
func (h *RecipientHandler) UpdatePreferences(c *gin.Context) {
	recipientID := c.Param("id")

	var prefs domain.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	updated, err := h.engine.UpdatePreferences(c.Request.Context(), recipientID, prefs)
	if err != nil {
		respondError(c, h.log, "Failed to update preferences", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Preferences updated successfully",
		"data":    updated,
	})
}
