package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/scheduler"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// ScheduleHandler handles cron-scheduled event requests
type ScheduleHandler struct {
	scheduler *scheduler.EventScheduler
	log       *logger.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduler *scheduler.EventScheduler, log *logger.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduler: scheduler,
		log:       log,
	}
}

// GetSchedules lists registered schedules with their next run
func (h *ScheduleHandler) GetSchedules(c *gin.Context) {
	schedules := h.scheduler.List()
	c.JSON(http.StatusOK, gin.H{
		"data":  schedules,
		"total": len(schedules),
	})
}

// PutSchedule registers or replaces the schedule named in the path
func (h *ScheduleHandler) PutSchedule(c *gin.Context) {
	var sched domain.ScheduledEvent
	if err := c.ShouldBindJSON(&sched); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	sched.ID = c.Param("id")
	sched.LastRunAt = nil
	sched.NextRunAt = nil

	if err := h.scheduler.Register(sched); err != nil {
		respondError(c, h.log, "Failed to register schedule", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Schedule registered successfully",
		"data":    sched,
	})
}

// DeleteSchedule removes a schedule
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	id := c.Param("id")
	if !h.scheduler.Remove(id) {
		c.JSON(http.StatusNotFound, errors.NewNotFoundError("schedule not found: "+id, nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted successfully"})
}

// TriggerSchedule submits the schedule's event immediately
func (h *ScheduleHandler) TriggerSchedule(c *gin.Context) {
	if err := h.scheduler.Trigger(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, "Failed to trigger schedule", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Schedule triggered"})
}
