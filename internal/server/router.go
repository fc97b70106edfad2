package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/studyforge/studyforge-backend/internal/handlers"
	"github.com/studyforge/studyforge-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName     string
	AllowOrigins    []string
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	DocumentHandler *handlers.DocumentHandler
	QuizHandler     *handlers.QuizHandler
	ProgressHandler *handlers.ProgressHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
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
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.POST("/refresh", cfg.AuthHandler.Refresh)
		protected.POST("/logout", cfg.AuthHandler.Logout)

		protected.POST("/documents", cfg.DocumentHandler.Upload)
		protected.GET("/documents", cfg.DocumentHandler.List)
		protected.GET("/documents/:id", cfg.DocumentHandler.Get)
		protected.POST("/documents/:id/ask", cfg.DocumentHandler.Ask)
		protected.GET("/documents/:id/summary", cfg.DocumentHandler.Summarize)

		protected.POST("/documents/:id/quiz", cfg.QuizHandler.Generate)
		protected.GET("/documents/:id/quiz", cfg.QuizHandler.Items)
		protected.POST("/documents/:id/quiz/grade", cfg.QuizHandler.Grade)
		protected.GET("/documents/:id/attempts", cfg.QuizHandler.ListAttempts)

		protected.GET("/documents/:id/progress", cfg.ProgressHandler.Get)
		protected.PUT("/documents/:id/progress/chapters", cfg.ProgressHandler.SetCompletedChapters)
	}

	return router
}

// SplitOrigins parses a comma-separated origin list from configuration.
func SplitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
