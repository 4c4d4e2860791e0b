package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/service"
)

// callerFromContext maps the validated token onto the service-level caller.
func callerFromContext(c *gin.Context) service.Caller {
	claims := middleware.Claims(c)
	if claims == nil {
		return service.Caller{}
	}
	return service.Caller{UserID: claims.UserID, Role: claims.Role}
}
