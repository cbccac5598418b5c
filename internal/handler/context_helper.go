package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tennis-club-api/internal/middleware"
	"github.com/noah-isme/tennis-club-api/internal/models"
)

func actingUserFromContext(c *gin.Context) *models.ActingUser {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.ActingUser)
	if !ok {
		return nil
	}
	return user
}

func actingUserID(c *gin.Context) string {
	if user := actingUserFromContext(c); user != nil {
		return user.UserID
	}
	return ""
}
