package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"studysync/presence-service/middleware"
	"studysync/presence-service/models"
	"studysync/presence-service/services"
	"studysync/presence-service/utils"
)

type PresenceHandler struct {
	service    *services.PresenceService
	metrics    *services.Metrics
	logger     *utils.Logger
	maxBulkIDs int
}

func NewPresenceHandler(service *services.PresenceService, metrics *services.Metrics, logger *utils.Logger, maxBulkIDs int) *PresenceHandler {
	return &PresenceHandler{
		service:    service,
		metrics:    metrics,
		logger:     logger,
		maxBulkIDs: maxBulkIDs,
	}
}

// Heartbeat handles POST /heartbeat
func (ph *PresenceHandler) Heartbeat(c *gin.Context) {
	var req models.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid JSON payload"})
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "userId is required"})
		return
	}
	if authUser := middleware.AuthUserID(c); authUser != "" && authUser != req.UserID {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "cannot send heartbeat for another user"})
		return
	}

	if err := ph.service.Heartbeat(c.Request.Context(), req.UserID); err != nil {
		ph.writeError(c, err)
		return
	}
	ph.metrics.IncHeartbeat()

	c.JSON(http.StatusOK, models.HeartbeatResponse{Success: true})
}

// GetStatus handles GET /status/:userId
func (ph *PresenceHandler) GetStatus(c *gin.Context) {
	userID := c.Param("userId")

	status, err := ph.service.Status(c.Request.Context(), userID)
	if err != nil {
		ph.writeError(c, err)
		return
	}
	ph.metrics.IncStatus()

	c.JSON(http.StatusOK, models.StatusResponse{
		UserID: userID,
		Status: status,
	})
}

// BulkStatus handles POST /status/bulk
func (ph *PresenceHandler) BulkStatus(c *gin.Context) {
	var req models.BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "userIds must be an array of strings"})
		return
	}
	if req.UserIDs == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "userIds must be an array of strings"})
		return
	}
	if ph.maxBulkIDs > 0 && len(req.UserIDs) > ph.maxBulkIDs {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: fmt.Sprintf("at most %d userIds per request", ph.maxBulkIDs),
		})
		return
	}

	statuses, err := ph.service.BulkStatus(c.Request.Context(), req.UserIDs)
	if err != nil {
		ph.writeError(c, err)
		return
	}
	ph.metrics.IncBulk(len(req.UserIDs))

	c.JSON(http.StatusOK, models.BulkStatusResponse(statuses))
}

// Metrics handles GET /metrics
func (ph *PresenceHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, ph.metrics.Snapshot())
}

func (ph *PresenceHandler) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrStoreUnavailable):
		ph.metrics.IncStoreError()
		ph.logger.Warn("Presence store unavailable", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "presence store unavailable"})
	default:
		ph.logger.Error("Unexpected presence error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
	}
}
