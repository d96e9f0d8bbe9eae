package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"studysync/presence-service/middleware"
	"studysync/presence-service/models"
	"studysync/presence-service/services"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocket handles GET /ws. The connect and every inbound text frame count
// as a heartbeat for the connection's user. A connection that stays silent
// for longer than the presence TTL is closed.
func (ph *PresenceHandler) WebSocket(c *gin.Context) {
	userID := middleware.AuthUserID(c)
	if userID == "" {
		userID = c.Query("userId")
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "userId is required"})
		return
	}

	ctx := c.Request.Context()
	if err := ph.service.Heartbeat(ctx, userID); err != nil {
		ph.writeError(c, err)
		return
	}
	ph.metrics.IncHeartbeat()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ph.logger.Warn("WebSocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	ph.metrics.IncSocket()
	defer ph.metrics.DecSocket()

	ttl := ph.service.TTL()
	logger := ph.logger.With("user_id", userID)
	logger.Debug("WebSocket heartbeat channel opened")

	for {
		conn.SetReadDeadline(time.Now().Add(ttl))
		msgType, _, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("WebSocket heartbeat channel closed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var reply interface{} = models.HeartbeatResponse{Success: true}
		if err := ph.service.Heartbeat(ctx, userID); err != nil {
			if errors.Is(err, services.ErrStoreUnavailable) {
				ph.metrics.IncStoreError()
			}
			logger.Warn("WebSocket heartbeat failed", "error", err)
			reply = models.ErrorResponse{Error: "presence store unavailable"}
		} else {
			ph.metrics.IncHeartbeat()
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}
