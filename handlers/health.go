package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studysync/presence-service/models"
	"studysync/presence-service/services"
)

const serviceName = "presence-service"

// HealthCheck reports the process as healthy and includes the store state.
func HealthCheck(service *services.PresenceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := "ok"
		if err := service.Healthy(c.Request.Context()); err != nil {
			store = "unavailable"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    "healthy",
			Service:   serviceName,
			Store:     store,
			Timestamp: time.Now(),
		})
	}
}
