package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lanbeam/relay/config"
	"github.com/lanbeam/relay/internal/middleware"
	"github.com/lanbeam/relay/internal/registry"
	"github.com/lanbeam/relay/internal/router"
	"github.com/lanbeam/relay/internal/store"
)

// NewEngine wires the relay's HTTP surface: the device websocket endpoint,
// the public read-only management API, and the authenticated mutations.
func NewEngine(cfg *config.Config, reg *registry.Registry, st *store.Store, rt *router.Router) *gin.Engine {
	engine := gin.Default()
	engine.Use(OriginFilter(cfg.AllowedOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	{
		api.POST("/auth/login", Login(cfg.JWTSecret))
		api.GET("/devices", ListDevices(reg))
		api.GET("/rooms", ListRooms(st))
		api.GET("/rooms/:roomId", GetRoom(st))
		api.DELETE("/rooms/:roomId", middleware.JWTAuth(cfg.JWTSecret), DissolveRoom(rt))
	}

	engine.GET("/ws", DeviceSocket(rt))

	return engine
}
