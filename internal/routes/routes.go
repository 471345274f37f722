package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hearthbid/hearthbid-backend/internal/handler"
	"github.com/hearthbid/hearthbid-backend/internal/middleware"
	pkgcache "github.com/hearthbid/hearthbid-backend/pkg/cache"
	pkgjwt "github.com/hearthbid/hearthbid-backend/pkg/jwt"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register wires every route onto the gin engine
func Register(r *gin.Engine, jwtManager *pkgjwt.Manager, cacheService pkgcache.Service, messageHandler *handler.MessageHandler, wsHandler *handler.WSHandler) {
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://hearthbid.com", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		if cacheService != nil && cacheService.IsAvailable() {
			if err := cacheService.Ping(c.Request.Context()); err != nil {
				status["redis"] = "down"
			} else {
				status["redis"] = "ok"
			}
		}
		c.JSON(200, status)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket authenticates via query token inside the handler
	r.GET("/ws/projects/:id", wsHandler.WatchProject)

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtManager))
	{
		api.POST("/projects/:id/messages", messageHandler.SendMessage)
		api.GET("/projects/:id/messages", messageHandler.GetMessages)
		api.GET("/projects/:id/messages/unread-count", messageHandler.GetUnreadCount)
		api.GET("/projects/:id/participants", messageHandler.GetParticipants)
		api.POST("/messages/:id/read", messageHandler.MarkRead)
	}
}
