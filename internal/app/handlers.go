package app

import (
	"github.com/studyforge/studyforge-backend/internal/handlers"
	"github.com/studyforge/studyforge-backend/internal/logger"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Document *handlers.DocumentHandler
	Quiz     *handlers.QuizHandler
	Progress *handlers.ProgressHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:     handlers.NewAuthHandler(log, services.Auth),
		Document: handlers.NewDocumentHandler(log, services.Document),
		Quiz:     handlers.NewQuizHandler(log, services.Quiz),
		Progress: handlers.NewProgressHandler(log, services.Progress),
	}
}
