package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskboard-go/internal/constants"
)

// RequestID echoes the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(constants.HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Writer.Header().Set(constants.HeaderRequestID, rid)
		c.Next()
	}
}
