// Package requestid tags every request with an ID so one download or import
// can be followed across the access log and the service logs.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerName = "X-Request-ID"
	ctxKey     = "request_id"
)

// Middleware reuses the caller-supplied X-Request-ID when present and mints
// a UUID otherwise. The ID is echoed in the response header.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKey, id)
		c.Writer.Header().Set(headerName, id)
		c.Next()
	}
}

// Value returns the request ID stored on the context, or "" when the
// middleware did not run.
func Value(c *gin.Context) string {
	if v, ok := c.Get(ctxKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
