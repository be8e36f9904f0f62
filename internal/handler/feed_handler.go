package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/repository"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// FeedHandler serves the in-app notification feed
type FeedHandler struct {
	feed repository.FeedStore
	now  func() time.Time
	log  *logger.Logger
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feed repository.FeedStore, now func() time.Time, log *logger.Logger) *FeedHandler {
	if now == nil {
		now = time.Now
	}
	return &FeedHandler{
		feed: feed,
		now:  now,
		log:  log,
	}
}

// GetFeed lists feed items of a recipient, newest first
func (h *FeedHandler) GetFeed(c *gin.Context) {
	recipientID := c.Param("id")

	var req domain.GetFeedRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	page, pageSize := pagination(c)

	items, total, err := h.feed.List(c.Request.Context(), recipientID, domain.FeedFilter{
		UnreadOnly:      req.UnreadOnly,
		IncludeArchived: req.IncludeArchived,
		Limit:           pageSize,
		Offset:          (page - 1) * pageSize,
	})
	if err != nil {
		respondError(c, h.log, "Failed to get feed", err)
		return
	}
	unread, err := h.feed.UnreadCount(c.Request.Context(), recipientID)
	if err != nil {
		respondError(c, h.log, "Failed to count unread items", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":         items,
		"total":        total,
		"unread_count": unread,
		"page":         page,
		"page_size":    pageSize,
	})
}

// UpdateItem toggles read, starred or archived flags of a feed item
func (h *FeedHandler) UpdateItem(c *gin.Context) {
	recipientID := c.Param("id")
	itemID := c.Param("item_id")

	var req domain.UpdateFeedItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	item, err := h.feed.Update(c.Request.Context(), recipientID, itemID, req, h.now())
	if err != nil {
		respondError(c, h.log, "Failed to update feed item", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Feed item updated successfully",
		"data":    item,
	})
}
