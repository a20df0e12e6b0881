package sse

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
	"github.com/ootdcast/pushhub/internal/infrastructure/push"
	"github.com/ootdcast/pushhub/internal/interfaces/middleware"
)

// InitSSERouter mounts the subscribe endpoint.
func InitSSERouter(
	log logger.Logger,
	orchestrator *push.Orchestrator,
	idleTimeout time.Duration,
	jwtSecret string,
	rg *gin.RouterGroup,
) {
	handler := NewSubscribeHandler(orchestrator, idleTimeout, log)

	sseGroup := rg.Group("/sse")
	sseGroup.GET("", middleware.Auth(jwtSecret), handler.Subscribe)
}
