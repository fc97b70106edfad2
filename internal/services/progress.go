package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/platform/apierr"
	"github.com/studyforge/studyforge-backend/internal/repos"
	"github.com/studyforge/studyforge-backend/internal/types"
)

// successThreshold is the average score at and above which a progress
// record is SUCCESS. Exactly 80 counts as SUCCESS.
const successThreshold = 80.0

type ProgressService interface {
	GetProgress(ctx context.Context, userID, documentID uuid.UUID) (*types.ProgressRecord, error)
	// GetOrCreate lazily creates the progress record for a (user, document)
	// pair. The record always carries a valid user reference; there is no
	// "recreate with an unresolved user" recovery path.
	GetOrCreate(ctx context.Context, tx *gorm.DB, userID, documentID uuid.UUID) (*types.ProgressRecord, error)
	// RecordAttempt appends one immutable attempt and folds it into the
	// aggregate. Attempt insert and progress recompute are one atomic
	// unit: callers must invoke it inside the transaction that owns both
	// writes.
	RecordAttempt(ctx context.Context, tx *gorm.DB, progressID uuid.UUID, result GradingResult) (*types.AttemptRecord, error)
	SetCompletedChapters(ctx context.Context, userID, documentID uuid.UUID, completed int) (*types.ProgressRecord, error)
}

type progressService struct {
	db           *gorm.DB
	log          *logger.Logger
	progressRepo repos.ProgressRecordRepo
	attemptRepo  repos.AttemptRecordRepo
	docRepo      repos.DocumentRepo
}

func NewProgressService(
	db *gorm.DB,
	log *logger.Logger,
	progressRepo repos.ProgressRecordRepo,
	attemptRepo repos.AttemptRecordRepo,
	docRepo repos.DocumentRepo,
) ProgressService {
	return &progressService{
		db:           db,
		log:          log.With("service", "ProgressService"),
		progressRepo: progressRepo,
		attemptRepo:  attemptRepo,
		docRepo:      docRepo,
	}
}

func (s *progressService) GetProgress(ctx context.Context, userID, documentID uuid.UUID) (*types.ProgressRecord, error) {
	if _, err := ownedDocument(ctx, s.docRepo, userID, documentID); err != nil {
		return nil, err
	}
	rec, err := s.progressRepo.GetByUserAndDocument(ctx, nil, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if rec == nil {
		return nil, apierr.New(http.StatusNotFound, "progress_not_found", nil)
	}
	return rec, nil
}

func (s *progressService) GetOrCreate(ctx context.Context, tx *gorm.DB, userID, documentID uuid.UUID) (*types.ProgressRecord, error) {
	if userID == uuid.Nil {
		return nil, apierr.New(http.StatusInternalServerError, "progress_without_user",
			fmt.Errorf("refusing to create progress record without a user id"))
	}
	rec, err := s.progressRepo.GetOrCreate(ctx, tx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("get or create progress: %w", err)
	}
	return rec, nil
}

func (s *progressService) RecordAttempt(ctx context.Context, tx *gorm.DB, progressID uuid.UUID, result GradingResult) (*types.AttemptRecord, error) {
	progress, err := s.progressRepo.GetByID(ctx, tx, progressID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if progress == nil || progress.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusInternalServerError, "progress_without_user",
			fmt.Errorf("attempt recorded against progress %s with no valid user reference", progressID))
	}

	resultsJSON, err := json.Marshal(result.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal attempt results: %w", err)
	}

	attempt := &types.AttemptRecord{
		ID:           uuid.New(),
		ProgressID:   progress.ID,
		BatchNumber:  result.BatchNumber,
		Score:        result.Score,
		CorrectCount: result.CorrectCount,
		TotalCount:   result.TotalCount,
		Results:      resultsJSON,
	}
	if _, err := s.attemptRepo.Create(ctx, tx, attempt); err != nil {
		return nil, fmt.Errorf("append attempt: %w", err)
	}

	// Recompute over the full durable history, not an incremental running
	// mean, so the average is independent of submission order and does
	// not accumulate floating-point drift.
	stats, err := s.attemptRepo.Stats(ctx, tx, progress.ID)
	if err != nil {
		return nil, fmt.Errorf("recompute attempt stats: %w", err)
	}

	now := time.Now()
	progress.AverageScore = stats.Average
	progress.AttemptCount = int(stats.Count)
	progress.Status = statusForAverage(stats.Average, stats.Count)
	progress.LastAccessedAt = &now
	if err := s.progressRepo.Update(ctx, tx, progress); err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}
	return attempt, nil
}

func (s *progressService) SetCompletedChapters(ctx context.Context, userID, documentID uuid.UUID, completed int) (*types.ProgressRecord, error) {
	doc, err := ownedDocument(ctx, s.docRepo, userID, documentID)
	if err != nil {
		return nil, err
	}
	if completed < 0 {
		return nil, apierr.New(http.StatusBadRequest, "invalid_chapter_count",
			fmt.Errorf("completed chapters must be >= 0"))
	}
	if doc.TotalChapters > 0 && completed > doc.TotalChapters {
		completed = doc.TotalChapters
	}

	var rec *types.ProgressRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		rec, txErr = s.GetOrCreate(ctx, tx, userID, documentID)
		if txErr != nil {
			return txErr
		}
		rec.CompletedChapters = completed
		return s.progressRepo.Update(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// statusForAverage is the derived-status rule: SUCCESS iff the average
// is at least the threshold, FAIL below it, IN_PROGRESS while no
// attempt exists.
func statusForAverage(average float64, attempts int64) string {
	if attempts == 0 {
		return types.ProgressStatusInProgress
	}
	if average >= successThreshold {
		return types.ProgressStatusSuccess
	}
	return types.ProgressStatusFail
}
