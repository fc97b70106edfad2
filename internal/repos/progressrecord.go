package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/types"
)

type ProgressRecordRepo interface {
	// GetOrCreate converges concurrent first-attempts for the same
	// (user, document) pair onto one row: insert-if-absent backed by the
	// unique index, then fetch.
	GetOrCreate(ctx context.Context, tx *gorm.DB, userID, documentID uuid.UUID) (*types.ProgressRecord, error)
	GetByUserAndDocument(ctx context.Context, tx *gorm.DB, userID, documentID uuid.UUID) (*types.ProgressRecord, error)
	GetByID(ctx context.Context, tx *gorm.DB, progressID uuid.UUID) (*types.ProgressRecord, error)
	Update(ctx context.Context, tx *gorm.DB, progress *types.ProgressRecord) error
}

type progressRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRecordRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRecordRepo {
	return &progressRecordRepo{db: db, log: baseLog.With("repo", "ProgressRecordRepo")}
}

func (r *progressRecordRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, userID, documentID uuid.UUID) (*types.ProgressRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("progress record requires a user id")
	}
	rec := &types.ProgressRecord{
		ID:         uuid.New(),
		UserID:     userID,
		DocumentID: documentID,
		Status:     types.ProgressStatusInProgress,
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "document_id"}},
			DoNothing: true,
		}).
		Create(rec).Error; err != nil {
		return nil, err
	}
	return r.GetByUserAndDocument(ctx, transaction, userID, documentID)
}

func (r *progressRecordRepo) GetByUserAndDocument(ctx context.Context, tx *gorm.DB, userID, documentID uuid.UUID) (*types.ProgressRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rec types.ProgressRecord
	err := transaction.WithContext(ctx).
		First(&rec, "user_id = ? AND document_id = ?", userID, documentID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *progressRecordRepo) GetByID(ctx context.Context, tx *gorm.DB, progressID uuid.UUID) (*types.ProgressRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rec types.ProgressRecord
	err := transaction.WithContext(ctx).First(&rec, "id = ?", progressID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *progressRecordRepo) Update(ctx context.Context, tx *gorm.DB, progress *types.ProgressRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(progress).Error
}
