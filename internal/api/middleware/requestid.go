package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDHeader carries the request correlation ID across services.
const requestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation ID, honoring one supplied
// by an upstream service so a request keeps a single ID across hops.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the correlation ID assigned by RequestID.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDHeader)
}
