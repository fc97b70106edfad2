package app

import (
	"github.com/gin-gonic/gin"

	"github.com/studyforge/studyforge-backend/internal/server"
)

func wireRouter(cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:     "studyforge-backend",
		AllowOrigins:    server.SplitOrigins(cfg.AllowOrigins),
		AuthHandler:     handlers.Auth,
		AuthMiddleware:  middleware.Auth,
		DocumentHandler: handlers.Document,
		QuizHandler:     handlers.Quiz,
		ProgressHandler: handlers.Progress,
	})
}
