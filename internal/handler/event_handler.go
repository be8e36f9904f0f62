package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/engine"
	"github.com/vhvplatform/go-notification-engine/internal/middleware"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// EventHandler accepts business events over HTTP
type EventHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(engine *engine.Engine, log *logger.Logger) *EventHandler {
	return &EventHandler{
		engine: engine,
		log:    log,
	}
}

// SubmitEvent evaluates a generic event and reports the scheduled deliveries
func (h *EventHandler) SubmitEvent(c *gin.Context) {
	var event domain.NotificationEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	if event.Source == "" {
		event.Source, _ = middleware.GetSource(c)
	}

	h.process(c, event)
}

// DocumentExpiry submits a document_expiry_check event
func (h *EventHandler) DocumentExpiry(c *gin.Context) {
	var req domain.DocumentExpiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	event := domain.NewDocumentExpiryEvent(uuid.New().String(), req.DocumentID, req.DocumentType, req.OwnerID, req.DaysRemaining, h.engine.Now())
	h.process(c, event)
}

// PayrollProcessed submits a payroll_processed event
func (h *EventHandler) PayrollProcessed(c *gin.Context) {
	var req domain.PayrollProcessedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	event := domain.NewPayrollProcessedEvent(uuid.New().String(), req.EmployeeID, req.Period, req.NetAmount, h.engine.Now())
	h.process(c, event)
}

func (h *EventHandler) process(c *gin.Context, event domain.NotificationEvent) {
	report, err := h.engine.ProcessEvent(c.Request.Context(), event)
	if err != nil {
		respondError(c, h.log, "Failed to process event", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Event accepted",
		"data":    report,
	})
}
