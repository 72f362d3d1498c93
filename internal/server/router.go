package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mockmate/mockmate-backend/internal/handlers"
)

type RouterConfig struct {
	SessionHandler *handlers.SessionHandler
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/sessions", cfg.SessionHandler.CreateSession)
		api.GET("/sessions/:id", cfg.SessionHandler.GetSession)
		api.GET("/sessions/:id/question", cfg.SessionHandler.GetQuestion)
		api.POST("/sessions/:id/responses", cfg.SessionHandler.SubmitResponse)
		api.POST("/sessions/:id/end", cfg.SessionHandler.EndSession)
	}

	return router
}
