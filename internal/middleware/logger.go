package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/logging"
)

// RequestLogger logs HTTP requests
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logging.WithRequest(c.Request, log.Fields{
			"status":     status,
			"latency_ms": logging.DurationMS(time.Since(start)),
			"client_ip":  c.ClientIP(),
			"outcome":    logging.ErrorKind(status, false),
		})
		if uid := c.GetString("user_id"); uid != "" {
			entry = entry.WithField("user_id", uid)
		}
		entry.Info("http_request")
	}
}
