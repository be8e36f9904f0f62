package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/dlq"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// DLQHandler handles dead letter queue operations
type DLQHandler struct {
	dlq *dlq.DeadLetterQueue
	log *logger.Logger
}

// NewDLQHandler creates a new DLQ handler
func NewDLQHandler(dlq *dlq.DeadLetterQueue, log *logger.Logger) *DLQHandler {
	return &DLQHandler{
		dlq: dlq,
		log: log,
	}
}

// GetDeadLetters retrieves exhausted deliveries from the DLQ
func (h *DLQHandler) GetDeadLetters(c *gin.Context) {
	page, pageSize := pagination(c)

	letters, total, err := h.dlq.GetAll(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, h.log, "Failed to get dead letters", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      letters,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetDeadLetter retrieves one dead letter
func (h *DLQHandler) GetDeadLetter(c *gin.Context) {
	letter, err := h.dlq.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to get dead letter", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": letter})
}

// RetryDeadLetter schedules a fresh delivery for a dead letter
func (h *DLQHandler) RetryDeadLetter(c *gin.Context) {
	id := c.Param("id")

	fresh, err := h.dlq.Retry(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, "Failed to retry dead letter", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Dead letter requeued successfully",
		"data":    fresh,
	})
}

// DeleteDeadLetter removes a dead letter
func (h *DLQHandler) DeleteDeadLetter(c *gin.Context) {
	if err := h.dlq.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, "Failed to delete dead letter", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dead letter deleted successfully"})
}
