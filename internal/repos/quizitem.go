package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/types"
)

type QuizItemRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, items []*types.QuizItem) ([]*types.QuizItem, error)
	// NextBatchNumber returns 1 + the highest existing batch number for the
	// document (1 if none), serialized against concurrent allocations for
	// the same document. Must be called inside the same transaction that
	// inserts the batch items.
	NextBatchNumber(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (int, error)
	MaxBatchNumber(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (int, error)
	GetByDocumentAndBatch(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, batch int) ([]*types.QuizItem, error)
}

type quizItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizItemRepo(db *gorm.DB, baseLog *logger.Logger) QuizItemRepo {
	return &quizItemRepo{db: db, log: baseLog.With("repo", "QuizItemRepo")}
}

func (r *quizItemRepo) CreateBatch(ctx context.Context, tx *gorm.DB, items []*types.QuizItem) ([]*types.QuizItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(items) == 0 {
		return []*types.QuizItem{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *quizItemRepo) NextBatchNumber(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	// Lock the parent document row so two generation requests cannot
	// allocate the same batch number. SQLite allows a single writer per
	// database and does not speak FOR UPDATE, so the clause is postgres-only.
	if transaction.Dialector.Name() == "postgres" {
		var doc types.Document
		if err := transaction.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&doc, "id = ?", documentID).Error; err != nil {
			return 0, err
		}
	}
	max, err := r.MaxBatchNumber(ctx, transaction, documentID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *quizItemRepo) MaxBatchNumber(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var max int
	if err := transaction.WithContext(ctx).
		Model(&types.QuizItem{}).
		Where("document_id = ?", documentID).
		Select("COALESCE(MAX(batch_number), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

func (r *quizItemRepo) GetByDocumentAndBatch(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, batch int) ([]*types.QuizItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var items []*types.QuizItem
	if err := transaction.WithContext(ctx).
		Where("document_id = ? AND batch_number = ?", documentID, batch).
		Order("seq ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
