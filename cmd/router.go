package main

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ootdcast/pushhub/internal/dispatch"
	"github.com/ootdcast/pushhub/internal/infrastructure/config"
	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
	"github.com/ootdcast/pushhub/internal/infrastructure/push"
	"github.com/ootdcast/pushhub/internal/infrastructure/storage"
	"github.com/ootdcast/pushhub/internal/interfaces/middleware"
	"github.com/ootdcast/pushhub/internal/interfaces/rest/v1/handler"
	"github.com/ootdcast/pushhub/internal/interfaces/sse"
	"github.com/ootdcast/pushhub/internal/interfaces/websocket"
)

func InitRouter(
	cfg *config.Config,
	orchestrator *push.Orchestrator,
	dispatcher *dispatch.Dispatcher,
	db *sql.DB,
	store *storage.NotificationStore,
	log logger.Logger,
) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Last-Event-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	rootGroup := router.Group("")

	// Health check endpoint
	rootGroup.GET("/hub/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"connections": orchestrator.Registry().ConnectionCount(),
			"receivers":   orchestrator.Registry().ReceiverCount(),
			"buffered":    orchestrator.Buffer().Len(),
		})
	})

	notificationHandler := handler.NewNotificationHandler(db, store, dispatcher, log)
	apiGroup := rootGroup.Group("/api/v1")
	apiGroup.Use(middleware.Auth(cfg.JWTSecret))
	{
		apiGroup.GET("/notifications", notificationHandler.List)
		apiGroup.DELETE("/notifications/:id", notificationHandler.Delete)
		apiGroup.POST("/announcements", notificationHandler.Announce)
	}

	sse.InitSSERouter(log, orchestrator, cfg.IdleTimeout, cfg.JWTSecret, rootGroup)
	websocket.InitWebSocketRouter(log, orchestrator, cfg.JWTSecret, rootGroup)

	return router
}
