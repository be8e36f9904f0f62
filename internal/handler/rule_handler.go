package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/engine"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// RuleHandler manages notification rules and templates
type RuleHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(engine *engine.Engine, log *logger.Logger) *RuleHandler {
	return &RuleHandler{
		engine: engine,
		log:    log,
	}
}

// ListRules lists all rules
func (h *RuleHandler) ListRules(c *gin.Context) {
	rules := h.engine.ListRules()
	c.JSON(http.StatusOK, gin.H{
		"data":  rules,
		"total": len(rules),
	})
}

// GetRule returns one rule
func (h *RuleHandler) GetRule(c *gin.Context) {
	rule, err := h.engine.GetRule(c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to get rule", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rule})
}

// PutRule registers or replaces the rule named in the path
func (h *RuleHandler) PutRule(c *gin.Context) {
	var rule domain.NotificationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	rule.ID = c.Param("id")

	if err := h.engine.RegisterRule(&rule); err != nil {
		respondError(c, h.log, "Failed to register rule", err)
		return
	}

	h.log.Info("Rule registered", "rule_id", rule.ID, "event_type", rule.EventType)
	c.JSON(http.StatusOK, gin.H{
		"message": "Rule registered successfully",
		"data":    rule,
	})
}

// DeleteRule removes a rule
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	if err := h.engine.RemoveRule(c.Param("id")); err != nil {
		respondError(c, h.log, "Failed to delete rule", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted successfully"})
}

// ListTemplates lists the latest version of every template
func (h *RuleHandler) ListTemplates(c *gin.Context) {
	templates := h.engine.ListTemplates()
	c.JSON(http.StatusOK, gin.H{
		"data":  templates,
		"total": len(templates),
	})
}

// GetTemplate returns the latest version of a template
func (h *RuleHandler) GetTemplate(c *gin.Context) {
	tmpl, err := h.engine.GetTemplate(c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to get template", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

// PutTemplate stores a new version of the template named in the path
func (h *RuleHandler) PutTemplate(c *gin.Context) {
	var tmpl domain.NotificationTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	tmpl.ID = c.Param("id")

	stored, err := h.engine.RegisterTemplate(&tmpl)
	if err != nil {
		respondError(c, h.log, "Failed to register template", err)
		return
	}

	h.log.Info("Template registered", "template_id", stored.ID, "version", stored.Version)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Template registered successfully",
		"data":    stored,
	})
}
