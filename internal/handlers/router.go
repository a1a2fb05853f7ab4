package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mafia-game/backend/internal/logger"
)

// Registry is everything the router needs from the room registry.
type Registry interface {
	Rooms
	RoomReader
}

// NewRouter wires HTTP and WebSocket routes.
func NewRouter(allowedOrigin string, hub *Hub, rooms Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors(allowedOrigin))

	api := router.Group("/api")
	{
		api.POST("/rooms", CreateRoom(rooms))
		api.GET("/rooms/:code", GetRoom(rooms))
	}

	router.GET("/ws", HandleWebSocket(hub, rooms))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": hub.Count()})
	})

	return router
}

func cors(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
