package websocket

import (
	"github.com/gin-gonic/gin"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
	"github.com/ootdcast/pushhub/internal/infrastructure/push"
	"github.com/ootdcast/pushhub/internal/interfaces/middleware"
)

// InitWebSocketRouter mounts the WebSocket subscribe endpoint.
func InitWebSocketRouter(
	log logger.Logger,
	orchestrator *push.Orchestrator,
	jwtSecret string,
	rg *gin.RouterGroup,
) {
	handler := NewSubscribeHandler(orchestrator, log)

	wsGroup := rg.Group("/ws")
	wsGroup.GET("", middleware.Auth(jwtSecret), handler.Subscribe)
}
