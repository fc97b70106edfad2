package app

import (
	"gorm.io/gorm"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/repos"
)

type Repos struct {
	User           repos.UserRepo
	UserToken      repos.UserTokenRepo
	Document       repos.DocumentRepo
	QuizItem       repos.QuizItemRepo
	ProgressRecord repos.ProgressRecordRepo
	AttemptRecord  repos.AttemptRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		UserToken:      repos.NewUserTokenRepo(db, log),
		Document:       repos.NewDocumentRepo(db, log),
		QuizItem:       repos.NewQuizItemRepo(db, log),
		ProgressRecord: repos.NewProgressRecordRepo(db, log),
		AttemptRecord:  repos.NewAttemptRecordRepo(db, log),
	}
}
