package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/engine"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// DeliveryHandler exposes delivery state and cancellation
type DeliveryHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(engine *engine.Engine, log *logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		engine: engine,
		log:    log,
	}
}

var deliveryStatuses = map[domain.DeliveryStatus]bool{
	domain.DeliveryStatusPending:   true,
	domain.DeliveryStatusSent:      true,
	domain.DeliveryStatusDelivered: true,
	domain.DeliveryStatusFailed:    true,
	domain.DeliveryStatusCancelled: true,
}

// ListDeliveries lists deliveries, optionally filtered by ?status=
func (h *DeliveryHandler) ListDeliveries(c *gin.Context) {
	status := domain.DeliveryStatus(c.Query("status"))
	if status != "" && !deliveryStatuses[status] {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("unknown delivery status: "+string(status), nil))
		return
	}

	deliveries := h.engine.ListDeliveries(status)
	c.JSON(http.StatusOK, gin.H{
		"data":  deliveries,
		"total": len(deliveries),
	})
}

// GetDelivery returns one delivery
func (h *DeliveryHandler) GetDelivery(c *gin.Context) {
	d, err := h.engine.GetDelivery(c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to get delivery", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": d})
}

// CancelDelivery cancels a delivery that has not been sent yet
func (h *DeliveryHandler) CancelDelivery(c *gin.Context) {
	id := c.Param("id")

	d, err := h.engine.CancelDelivery(id)
	if err != nil {
		respondError(c, h.log, "Failed to cancel delivery", err)
		return
	}

	h.log.Info("Delivery cancelled", "delivery_id", id)
	c.JSON(http.StatusOK, gin.H{
		"message": "Delivery cancelled successfully",
		"data":    d,
	})
}

// GetStats returns aggregate delivery counts
func (h *DeliveryHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.engine.GetDeliveryStats()})
}
