package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/types"
)

// AttemptStats is the aggregate over the full durable attempt history
// of one progress record.
type AttemptStats struct {
	Count   int64
	Average float64
}

type AttemptRecordRepo interface {
	// Create is a pure append; attempt records are never updated.
	Create(ctx context.Context, tx *gorm.DB, attempt *types.AttemptRecord) (*types.AttemptRecord, error)
	ListByProgress(ctx context.Context, tx *gorm.DB, progressID uuid.UUID) ([]*types.AttemptRecord, error)
	ListByProgressAndBatch(ctx context.Context, tx *gorm.DB, progressID uuid.UUID, batch int) ([]*types.AttemptRecord, error)
	// Stats recomputes count and mean score over all attempts for the
	// progress record, in SQL, so the average never drifts incrementally.
	Stats(ctx context.Context, tx *gorm.DB, progressID uuid.UUID) (AttemptStats, error)
}

type attemptRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttemptRecordRepo(db *gorm.DB, baseLog *logger.Logger) AttemptRecordRepo {
	return &attemptRecordRepo{db: db, log: baseLog.With("repo", "AttemptRecordRepo")}
}

func (r *attemptRecordRepo) Create(ctx context.Context, tx *gorm.DB, attempt *types.AttemptRecord) (*types.AttemptRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *attemptRecordRepo) ListByProgress(ctx context.Context, tx *gorm.DB, progressID uuid.UUID) ([]*types.AttemptRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var attempts []*types.AttemptRecord
	if err := transaction.WithContext(ctx).
		Where("progress_id = ?", progressID).
		Order("created_at DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRecordRepo) ListByProgressAndBatch(ctx context.Context, tx *gorm.DB, progressID uuid.UUID, batch int) ([]*types.AttemptRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var attempts []*types.AttemptRecord
	if err := transaction.WithContext(ctx).
		Where("progress_id = ? AND batch_number = ?", progressID, batch).
		Order("created_at DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRecordRepo) Stats(ctx context.Context, tx *gorm.DB, progressID uuid.UUID) (AttemptStats, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row struct {
		Count   int64
		Average *float64
	}
	if err := transaction.WithContext(ctx).
		Model(&types.AttemptRecord{}).
		Where("progress_id = ?", progressID).
		Select("COUNT(*) AS count, AVG(score) AS average").
		Scan(&row).Error; err != nil {
		return AttemptStats{}, err
	}
	stats := AttemptStats{Count: row.Count}
	if row.Average != nil {
		stats.Average = *row.Average
	}
	return stats, nil
}
