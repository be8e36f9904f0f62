package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// SourceKey is the context key for the calling event source
	SourceKey ContextKey = "event_source"

	// SourceHeader identifies the upstream system submitting events
	SourceHeader = "X-Event-Source"

	sourcePattern = `^[a-zA-Z0-9_.-]+$`
)

var sourceRegex = regexp.MustCompile(sourcePattern)

// SourceMiddleware resolves the caller identity used for rate limiting and
// logging. The X-Event-Source header is optional; without it the client IP
// is used. A malformed header is rejected with 400.
func SourceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.GetHeader(SourceHeader)

		if source != "" {
			if len(source) > 128 || !sourceRegex.MatchString(source) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "Invalid event source",
					"message": "X-Event-Source must be at most 128 alphanumeric characters, dots, hyphens or underscores",
					"code":    "INVALID_EVENT_SOURCE",
				})
				c.Abort()
				return
			}
		} else {
			source = c.ClientIP()
		}

		c.Set(string(SourceKey), source)
		ctx := context.WithValue(c.Request.Context(), SourceKey, source)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetSource returns the source resolved by SourceMiddleware
func GetSource(c *gin.Context) (string, bool) {
	v, ok := c.Get(string(SourceKey))
	if !ok {
		return "", false
	}
	source, ok := v.(string)
	return source, ok && source != ""
}

// SourceFromContext reads the source from a request context
func SourceFromContext(ctx context.Context) string {
	source, _ := ctx.Value(SourceKey).(string)
	return source
}
