package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init test logger: %v", err)
	}
	return log
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// An in-memory sqlite database exists per connection; pin the pool to
	// one connection so concurrent test goroutines share it.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Document{},
		&types.QuizItem{},
		&types.ProgressRecord{},
		&types.AttemptRecord{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *types.User {
	t.Helper()
	user := &types.User{
		ID:       uuid.New(),
		Email:    uuid.NewString() + "@example.com",
		Password: "hashed",
		Name:     "Test User",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedCompletedDocument(t *testing.T, db *gorm.DB, userID uuid.UUID) *types.Document {
	t.Helper()
	doc := &types.Document{
		ID:            uuid.New(),
		UserID:        userID,
		OriginalName:  "notes.pdf",
		MimeType:      "application/pdf",
		SizeBytes:     2048,
		Status:        types.DocumentStatusCompleted,
		TotalChapters: 10,
		VectorRef:     "vec-" + uuid.NewString(),
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

// fakeInference is a canned-response InferenceClient for service tests.
type fakeInference struct {
	quizPayload  []map[string]any
	quizErr      error
	gradePayload map[string]any
	gradeErr     error
	vectorizeErr error
	answer       string
	summary      string
	completeObj  map[string]any
	completeErr  error
}

func (f *fakeInference) UploadAndVectorize(ctx context.Context, documentID uuid.UUID, filename string, data []byte) (VectorizeResult, error) {
	if f.vectorizeErr != nil {
		return VectorizeResult{}, f.vectorizeErr
	}
	return VectorizeResult{TotalChapters: 10, VectorRef: "vec-fake"}, nil
}

func (f *fakeInference) GenerateQuiz(ctx context.Context, vectorRef string, count int, difficulty string) ([]map[string]any, error) {
	return f.quizPayload, f.quizErr
}

func (f *fakeInference) Grade(ctx context.Context, vectorRef string, answers map[string]string) (map[string]any, error) {
	return f.gradePayload, f.gradeErr
}

func (f *fakeInference) Ask(ctx context.Context, vectorRef string, question string) (string, error) {
	return f.answer, nil
}

func (f *fakeInference) Summarize(ctx context.Context, vectorRef string) (string, error) {
	return f.summary, nil
}

func (f *fakeInference) CompleteJSON(ctx context.Context, prompt string) (map[string]any, error) {
	return f.completeObj, f.completeErr
}
