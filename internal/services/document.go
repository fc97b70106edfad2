package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/platform/apierr"
	"github.com/studyforge/studyforge-backend/internal/repos"
	"github.com/studyforge/studyforge-backend/internal/types"
)

type DocumentService interface {
	// Upload stores the document record and runs vectorization
	// synchronously within the caller's request: the document ends up
	// COMPLETED (with chapter count backfilled) or FAILED, never stuck
	// in PROCESSING past the call.
	Upload(ctx context.Context, userID uuid.UUID, filename, mimeType string, data []byte) (*types.Document, error)
	Get(ctx context.Context, userID, documentID uuid.UUID) (*types.Document, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.Document, error)
	Ask(ctx context.Context, userID, documentID uuid.UUID, question string) (string, error)
	Summarize(ctx context.Context, userID, documentID uuid.UUID) (string, error)
}

type documentService struct {
	db      *gorm.DB
	log     *logger.Logger
	docRepo repos.DocumentRepo
	gateway InferenceClient
}

func NewDocumentService(db *gorm.DB, log *logger.Logger, docRepo repos.DocumentRepo, gateway InferenceClient) DocumentService {
	return &documentService{
		db:      db,
		log:     log.With("service", "DocumentService"),
		docRepo: docRepo,
		gateway: gateway,
	}
}

func (s *documentService) Upload(ctx context.Context, userID uuid.UUID, filename, mimeType string, data []byte) (*types.Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_filename", nil)
	}
	if len(data) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "empty_file", nil)
	}

	doc := &types.Document{
		ID:           uuid.New(),
		UserID:       userID,
		OriginalName: filename,
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		Status:       types.DocumentStatusPending,
	}
	if _, err := s.docRepo.Create(ctx, nil, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	doc.Status = types.DocumentStatusProcessing
	if err := s.docRepo.Update(ctx, nil, doc); err != nil {
		return nil, fmt.Errorf("mark document processing: %w", err)
	}

	res, err := s.gateway.UploadAndVectorize(ctx, doc.ID, filename, data)
	if err != nil {
		doc.Status = types.DocumentStatusFailed
		if uErr := s.docRepo.Update(ctx, nil, doc); uErr != nil {
			s.log.Error("Failed to mark document FAILED after vectorization error",
				"document_id", doc.ID, "error", uErr)
		}
		return nil, apierr.New(http.StatusBadGateway, "inference_unavailable", err)
	}

	doc.Status = types.DocumentStatusCompleted
	doc.TotalChapters = res.TotalChapters
	doc.VectorRef = res.VectorRef
	if err := s.docRepo.Update(ctx, nil, doc); err != nil {
		return nil, fmt.Errorf("complete document: %w", err)
	}

	s.log.Info("Document vectorized",
		"document_id", doc.ID,
		"total_chapters", doc.TotalChapters,
	)
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, userID, documentID uuid.UUID) (*types.Document, error) {
	return ownedDocument(ctx, s.docRepo, userID, documentID)
}

func (s *documentService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.Document, error) {
	docs, err := s.docRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *documentService) Ask(ctx context.Context, userID, documentID uuid.UUID, question string) (string, error) {
	doc, err := s.readyDocument(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", apierr.New(http.StatusBadRequest, "missing_question", nil)
	}
	answer, err := s.gateway.Ask(ctx, doc.VectorRef, question)
	if err != nil {
		return "", apierr.New(http.StatusBadGateway, "inference_unavailable", err)
	}
	return answer, nil
}

func (s *documentService) Summarize(ctx context.Context, userID, documentID uuid.UUID) (string, error) {
	doc, err := s.readyDocument(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	summary, err := s.gateway.Summarize(ctx, doc.VectorRef)
	if err != nil {
		return "", apierr.New(http.StatusBadGateway, "inference_unavailable", err)
	}
	return summary, nil
}

func (s *documentService) readyDocument(ctx context.Context, userID, documentID uuid.UUID) (*types.Document, error) {
	doc, err := ownedDocument(ctx, s.docRepo, userID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != types.DocumentStatusCompleted || doc.VectorRef == "" {
		return nil, apierr.New(http.StatusBadRequest, "document_not_ready",
			fmt.Errorf("document %s has status %s", doc.ID, doc.Status))
	}
	return doc, nil
}

// ownedDocument loads a document and enforces ownership. A document
// belonging to another user reads as NotFound, not Forbidden, so the
// API does not leak document existence.
func ownedDocument(ctx context.Context, docRepo repos.DocumentRepo, userID, documentID uuid.UUID) (*types.Document, error) {
	doc, err := docRepo.GetByID(ctx, nil, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil || doc.UserID != userID {
		return nil, apierr.New(http.StatusNotFound, "document_not_found", nil)
	}
	return doc, nil
}
