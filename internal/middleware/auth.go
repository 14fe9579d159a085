package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator func(token string) (userID string, err error)

// BearerAuth rejects requests without a valid bearer token with 401 and
// stores the user id under "user_id".
func BearerAuth(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "missing_token", "message": "Authentication required"},
			})
			return
		}
		uid, err := validate(strings.TrimSpace(header[7:]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "token_expired", "message": err.Error()},
			})
			return
		}
		c.Set("user_id", uid)
		c.Next()
	}
}
