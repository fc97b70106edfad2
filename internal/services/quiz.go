package services

import (
	"context"
	"encoding/json"
	"errors"
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

const (
	defaultQuizCount = 5
	maxQuizCount     = 50
)

// AttemptSummary is the list view of one recorded attempt.
type AttemptSummary struct {
	ID           uuid.UUID `json:"id"`
	BatchNumber  int       `json:"batch_number"`
	Score        int       `json:"score"`
	CorrectCount int       `json:"correct_count"`
	TotalCount   int       `json:"total_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type QuizService interface {
	// GenerateBatch creates the next numbered, immutable batch of quiz
	// items for the document. Prior batches are never mutated.
	GenerateBatch(ctx context.Context, userID, documentID uuid.UUID, count int, difficulty string) (int, []*types.QuizItem, error)
	// ItemsForBatch resolves batch (nil means latest) and returns its
	// items in sequence order.
	ItemsForBatch(ctx context.Context, userID, documentID uuid.UUID, batch *int) ([]*types.QuizItem, int, error)
	// GradeBatch grades a submission, appends the attempt and folds it
	// into the progress aggregate in one transaction.
	GradeBatch(ctx context.Context, userID, documentID uuid.UUID, batch *int, answers map[string]string, useAI bool) (*GradingResult, error)
	ListAttempts(ctx context.Context, userID, documentID uuid.UUID, batch *int) ([]AttemptSummary, error)
}

type quizService struct {
	db          *gorm.DB
	log         *logger.Logger
	docRepo     repos.DocumentRepo
	quizRepo    repos.QuizItemRepo
	attemptRepo repos.AttemptRecordRepo
	progressSvc ProgressService
	gateway     InferenceClient
	normalizer  *QuizNormalizer
}

func NewQuizService(
	db *gorm.DB,
	log *logger.Logger,
	docRepo repos.DocumentRepo,
	quizRepo repos.QuizItemRepo,
	attemptRepo repos.AttemptRecordRepo,
	progressSvc ProgressService,
	gateway InferenceClient,
	normalizer *QuizNormalizer,
) QuizService {
	return &quizService{
		db:          db,
		log:         log.With("service", "QuizService"),
		docRepo:     docRepo,
		quizRepo:    quizRepo,
		attemptRepo: attemptRepo,
		progressSvc: progressSvc,
		gateway:     gateway,
		normalizer:  normalizer,
	}
}

func (s *quizService) GenerateBatch(ctx context.Context, userID, documentID uuid.UUID, count int, difficulty string) (int, []*types.QuizItem, error) {
	doc, err := ownedDocument(ctx, s.docRepo, userID, documentID)
	if err != nil {
		return 0, nil, err
	}
	if doc.Status != types.DocumentStatusCompleted || doc.VectorRef == "" {
		return 0, nil, apierr.New(http.StatusBadRequest, "document_not_ready",
			fmt.Errorf("document %s has status %s", doc.ID, doc.Status))
	}
	if count <= 0 {
		count = defaultQuizCount
	}
	if count > maxQuizCount {
		count = maxQuizCount
	}
	if difficulty == "" {
		difficulty = "medium"
	}

	// The slow inference call runs before the transaction so the batch
	// allocation lock is held only for the insert itself.
	raws, err := s.gateway.GenerateQuiz(ctx, doc.VectorRef, count, difficulty)
	if err != nil {
		return 0, nil, apierr.New(http.StatusBadGateway, "inference_unavailable", err)
	}
	normalized := s.normalizer.NormalizeBatch(ctx, raws)
	if len(normalized) == 0 {
		return 0, nil, apierr.New(http.StatusBadGateway, "inference_empty",
			fmt.Errorf("inference returned no usable quiz items"))
	}

	var (
		batchNumber int
		created     []*types.QuizItem
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, txErr := s.progressSvc.GetOrCreate(ctx, tx, userID, doc.ID); txErr != nil {
			return txErr
		}
		var txErr error
		batchNumber, txErr = s.quizRepo.NextBatchNumber(ctx, tx, doc.ID)
		if txErr != nil {
			return fmt.Errorf("allocate batch number: %w", txErr)
		}
		created = make([]*types.QuizItem, 0, len(normalized))
		for i, item := range normalized {
			optionsJSON, mErr := json.Marshal(item.Options)
			if mErr != nil {
				return fmt.Errorf("marshal options: %w", mErr)
			}
			created = append(created, &types.QuizItem{
				ID:            uuid.New(),
				DocumentID:    doc.ID,
				BatchNumber:   batchNumber,
				Seq:           i + 1,
				Question:      item.Question,
				Options:       optionsJSON,
				CorrectAnswer: item.CorrectAnswer,
				Explanation:   item.Explanation,
			})
		}
		_, txErr = s.quizRepo.CreateBatch(ctx, tx, created)
		return txErr
	})
	if err != nil {
		return 0, nil, err
	}

	s.log.Info("Generated quiz batch",
		"document_id", doc.ID,
		"batch_number", batchNumber,
		"items", len(created),
	)
	return batchNumber, created, nil
}

func (s *quizService) ItemsForBatch(ctx context.Context, userID, documentID uuid.UUID, batch *int) ([]*types.QuizItem, int, error) {
	doc, err := ownedDocument(ctx, s.docRepo, userID, documentID)
	if err != nil {
		return nil, 0, err
	}
	return s.resolveBatch(ctx, doc, batch)
}

// resolveBatch distinguishes "no quizzes ever" (NotFound) from "batch
// exists but is empty" (InvalidInput).
func (s *quizService) resolveBatch(ctx context.Context, doc *types.Document, batch *int) ([]*types.QuizItem, int, error) {
	max, err := s.quizRepo.MaxBatchNumber(ctx, nil, doc.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve latest batch: %w", err)
	}
	if max == 0 {
		return nil, 0, apierr.New(http.StatusNotFound, "quiz_not_found",
			fmt.Errorf("document %s has no quiz batches", doc.ID))
	}
	resolved := max
	if batch != nil {
		if *batch < 1 || *batch > max {
			return nil, 0, apierr.New(http.StatusNotFound, "batch_not_found",
				fmt.Errorf("batch %d does not exist for document %s", *batch, doc.ID))
		}
		resolved = *batch
	}
	items, err := s.quizRepo.GetByDocumentAndBatch(ctx, nil, doc.ID, resolved)
	if err != nil {
		return nil, 0, fmt.Errorf("load batch items: %w", err)
	}
	if len(items) == 0 {
		return nil, 0, apierr.New(http.StatusBadRequest, "empty_batch",
			fmt.Errorf("batch %d of document %s has no items", resolved, doc.ID))
	}
	return items, resolved, nil
}

func (s *quizService) GradeBatch(ctx context.Context, userID, documentID uuid.UUID, batch *int, answers map[string]string, useAI bool) (*GradingResult, error) {
	doc, err := ownedDocument(ctx, s.docRepo, userID, documentID)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "missing_answers",
			fmt.Errorf("no answers submitted"))
	}

	items, batchNumber, err := s.resolveBatch(ctx, doc, batch)
	if err != nil {
		return nil, err
	}

	var result GradingResult
	if useAI && doc.VectorRef != "" {
		raw, gErr := s.gateway.Grade(ctx, doc.VectorRef, answers)
		if gErr != nil {
			return nil, apierr.New(http.StatusBadGateway, "inference_unavailable", gErr)
		}
		result, err = s.foldUpstreamGrading(items, raw)
	} else {
		result, err = GradeItems(items, answers)
	}
	if err != nil {
		return nil, err
	}
	result.BatchNumber = batchNumber

	// Attempt append and progress recompute are one atomic unit.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		progress, txErr := s.progressSvc.GetOrCreate(ctx, tx, userID, doc.ID)
		if txErr != nil {
			return txErr
		}
		_, txErr = s.progressSvc.RecordAttempt(ctx, tx, progress.ID, result)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// foldUpstreamGrading maps an upstream grading payload onto the batch
// items so downstream consumers never see a shape difference between
// local and upstream grading. Items the upstream did not grade count as
// incorrect; the score is recomputed locally over the full batch.
func (s *quizService) foldUpstreamGrading(items []*types.QuizItem, raw map[string]any) (GradingResult, error) {
	if len(items) == 0 {
		return GradingResult{}, apierr.New(http.StatusInternalServerError, "invalid_batch",
			fmt.Errorf("upstream grading folded over zero quiz items"))
	}

	graded := make(map[string]ItemResult)
	for _, entry := range upstreamGradingEntries(raw) {
		normalized, ok := s.normalizer.NormalizeGradingItem(entry)
		if !ok {
			s.log.Warn("Skipped undecodable upstream grading entry")
			continue
		}
		graded[normalizeText(normalized.Question)] = normalized
	}

	results := make([]ItemResult, 0, len(items))
	correctCount := 0
	for _, item := range items {
		res, found := graded[normalizeText(item.Question)]
		if !found {
			res = ItemResult{
				Question:      item.Question,
				Correct:       false,
				CorrectAnswer: item.CorrectAnswer,
				Explanation:   item.Explanation,
			}
		}
		res.ItemID = item.ID
		if res.Correct {
			correctCount++
		}
		results = append(results, res)
	}

	return GradingResult{
		Score:        scoreOf(correctCount, len(items)),
		CorrectCount: correctCount,
		TotalCount:   len(items),
		Items:        results,
	}, nil
}

// upstreamGradingEntries digs the per-item list out of a raw grading
// payload, trying the known alternate keys.
func upstreamGradingEntries(raw map[string]any) []map[string]any {
	var list []any
	for _, key := range []string{"results", "items", "graded", "answers"} {
		if v, ok := raw[key].([]any); ok && len(v) > 0 {
			list = v
			break
		}
	}
	out := make([]map[string]any, 0, len(list))
	for _, el := range list {
		if m, ok := el.(map[string]any); ok {
			out = append(out, m)
		} else {
			out = append(out, nil)
		}
	}
	return out
}

func (s *quizService) ListAttempts(ctx context.Context, userID, documentID uuid.UUID, batch *int) ([]AttemptSummary, error) {
	doc, err := ownedDocument(ctx, s.docRepo, userID, documentID)
	if err != nil {
		return nil, err
	}
	progress, err := s.progressRecordFor(ctx, userID, doc.ID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return []AttemptSummary{}, nil
	}

	var attempts []*types.AttemptRecord
	if batch != nil {
		attempts, err = s.attemptRepo.ListByProgressAndBatch(ctx, nil, progress.ID, *batch)
	} else {
		attempts, err = s.attemptRepo.ListByProgress(ctx, nil, progress.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	summaries := make([]AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		summaries = append(summaries, AttemptSummary{
			ID:           a.ID,
			BatchNumber:  a.BatchNumber,
			Score:        a.Score,
			CorrectCount: a.CorrectCount,
			TotalCount:   a.TotalCount,
			CreatedAt:    a.CreatedAt,
		})
	}
	return summaries, nil
}

func (s *quizService) progressRecordFor(ctx context.Context, userID, documentID uuid.UUID) (*types.ProgressRecord, error) {
	rec, err := s.progressSvc.GetProgress(ctx, userID, documentID)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) && apiErr.Code == "progress_not_found" {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}
