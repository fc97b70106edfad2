package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/studyforge/studyforge-backend/internal/platform/apierr"
	"github.com/studyforge/studyforge-backend/internal/repos"
	"github.com/studyforge/studyforge-backend/internal/types"
)

func newDocumentService(t *testing.T, db *gorm.DB, gateway InferenceClient) DocumentService {
	t.Helper()
	log := newTestLogger(t)
	return NewDocumentService(db, log, repos.NewDocumentRepo(db, log), gateway)
}

func TestUpload_CompletesWithChapterCount(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, &fakeInference{})
	user := seedUser(t, db)

	doc, err := svc.Upload(context.Background(), user.ID, "notes.pdf", "application/pdf", []byte("content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Status != types.DocumentStatusCompleted {
		t.Fatalf("status = %q, want COMPLETED", doc.Status)
	}
	if doc.TotalChapters != 10 || doc.VectorRef == "" {
		t.Fatalf("chapters = %d vector_ref = %q", doc.TotalChapters, doc.VectorRef)
	}
	if doc.SizeBytes != int64(len("content")) {
		t.Fatalf("size = %d", doc.SizeBytes)
	}
}

func TestUpload_VectorizationFailureMarksFailed(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, &fakeInference{vectorizeErr: errors.New("upstream down")})
	user := seedUser(t, db)
	ctx := context.Background()

	_, err := svc.Upload(ctx, user.ID, "notes.pdf", "application/pdf", []byte("content"))
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "inference_unavailable" {
		t.Fatalf("error = %v, want inference_unavailable", err)
	}

	// The record must be durably FAILED, never stuck in PROCESSING.
	docs, err := svc.ListForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("documents = %d, want 1", len(docs))
	}
	if docs[0].Status != types.DocumentStatusFailed {
		t.Fatalf("status = %q, want FAILED", docs[0].Status)
	}
}

func TestUpload_RejectsEmptyInput(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, &fakeInference{})
	user := seedUser(t, db)
	ctx := context.Background()

	var apiErr *apierr.Error
	_, err := svc.Upload(ctx, user.ID, "  ", "text/plain", []byte("x"))
	if !errors.As(err, &apiErr) || apiErr.Code != "missing_filename" {
		t.Fatalf("error = %v, want missing_filename", err)
	}
	_, err = svc.Upload(ctx, user.ID, "notes.txt", "text/plain", nil)
	if !errors.As(err, &apiErr) || apiErr.Code != "empty_file" {
		t.Fatalf("error = %v, want empty_file", err)
	}
}

func TestAsk_RequiresReadyDocument(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, &fakeInference{answer: "Paris"})
	user := seedUser(t, db)
	doc := seedCompletedDocument(t, db, user.ID)
	ctx := context.Background()

	answer, err := svc.Ask(ctx, user.ID, doc.ID, "Capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "Paris" {
		t.Fatalf("answer = %q", answer)
	}

	doc.Status = types.DocumentStatusPending
	doc.VectorRef = ""
	if err := db.Save(doc).Error; err != nil {
		t.Fatalf("update document: %v", err)
	}
	var apiErr *apierr.Error
	_, err = svc.Ask(ctx, user.ID, doc.ID, "Capital of France?")
	if !errors.As(err, &apiErr) || apiErr.Code != "document_not_ready" {
		t.Fatalf("error = %v, want document_not_ready", err)
	}
}

func TestGet_OwnershipHidesForeignDocuments(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, &fakeInference{})
	owner := seedUser(t, db)
	intruder := seedUser(t, db)
	doc := seedCompletedDocument(t, db, owner.ID)
	ctx := context.Background()

	if _, err := svc.Get(ctx, owner.ID, doc.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	var apiErr *apierr.Error
	_, err := svc.Get(ctx, intruder.ID, doc.ID)
	if !errors.As(err, &apiErr) || apiErr.Code != "document_not_found" {
		t.Fatalf("error = %v, want document_not_found for foreign document", err)
	}
}
