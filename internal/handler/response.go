package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// respondError writes err as JSON. Application errors keep their status and
// code; anything else is reported as an internal error with message.
func respondError(c *gin.Context, log *logger.Logger, message string, err error) {
	if appErr, ok := errors.As(err); ok {
		if appErr.Status() >= http.StatusInternalServerError {
			log.Error(message, "error", err, "path", c.FullPath())
		}
		c.JSON(appErr.Status(), appErr)
		return
	}
	log.Error(message, "error", err, "path", c.FullPath())
	c.JSON(http.StatusInternalServerError, errors.NewInternalError(message, err))
}

// pagination reads page and page_size query parameters with sane bounds
func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}
