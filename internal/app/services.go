package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/services"
)

type Services struct {
	Auth      services.AuthService
	Inference services.InferenceClient
	Document  services.DocumentService
	Progress  services.ProgressService
	Quiz      services.QuizService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos) (Services, error) {
	log.Info("Wiring services...")

	inference, err := services.NewInferenceClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init inference client: %w", err)
	}

	auth := services.NewAuthService(db, log, r.User, r.UserToken,
		cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	document := services.NewDocumentService(db, log, r.Document, inference)
	progress := services.NewProgressService(db, log, r.ProgressRecord, r.AttemptRecord, r.Document)
	normalizer := services.NewQuizNormalizer(log, inference)
	quiz := services.NewQuizService(db, log, r.Document, r.QuizItem, r.AttemptRecord,
		progress, inference, normalizer)

	return Services{
		Auth:      auth,
		Inference: inference,
		Document:  document,
		Progress:  progress,
		Quiz:      quiz,
	}, nil
}
