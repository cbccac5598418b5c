package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tennis-club-api/internal/models"
	appErrors "github.com/noah-isme/tennis-club-api/pkg/errors"
	"github.com/noah-isme/tennis-club-api/pkg/logger"
	"github.com/noah-isme/tennis-club-api/pkg/response"
)

// ContextUserKey is the gin context key storing the acting user.
const ContextUserKey = "actingUser"

// UserIDHeader carries the acting user id set by the upstream gateway.
const UserIDHeader = "X-User-ID"

const maxUserIDLength = 128

// Identity attaches the acting user named by the X-User-ID header when present.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" || len(userID) > maxUserIDLength {
			c.Next()
			return
		}
		c.Set(ContextUserKey, &models.ActingUser{UserID: userID})
		c.Set(logger.UserIDKey, userID)
		c.Next()
	}
}

// RequireUser rejects requests that carry no acting user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserKey); !exists {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing "+UserIDHeader+" header"))
			c.Abort()
			return
		}
		c.Next()
	}
}
