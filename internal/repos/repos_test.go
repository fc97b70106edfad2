package repos

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

func newTestDB(t *testing.T) (*gorm.DB, *logger.Logger) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init test logger: %v", err)
	}
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
	return db, log
}

func seedDoc(t *testing.T, db *gorm.DB) *types.Document {
	t.Helper()
	user := &types.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Password: "x", Name: "u"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	doc := &types.Document{
		ID:           uuid.New(),
		UserID:       user.ID,
		OriginalName: "notes.pdf",
		Status:       types.DocumentStatusCompleted,
		VectorRef:    "vec-1",
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func TestNextBatchNumber_StartsAtOneAndIncrements(t *testing.T) {
	db, log := newTestDB(t)
	repo := NewQuizItemRepo(db, log)
	doc := seedDoc(t, db)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		var got int
		err := db.Transaction(func(tx *gorm.DB) error {
			n, txErr := repo.NextBatchNumber(ctx, tx, doc.ID)
			if txErr != nil {
				return txErr
			}
			got = n
			items := []*types.QuizItem{{
				ID:            uuid.New(),
				DocumentID:    doc.ID,
				BatchNumber:   n,
				Seq:           1,
				Question:      "Q?",
				Options:       []byte(`["a","b"]`),
				CorrectAnswer: "a",
				Explanation:   "because",
			}}
			_, txErr = repo.CreateBatch(ctx, tx, items)
			return txErr
		})
		if err != nil {
			t.Fatalf("allocate batch %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("batch number = %d, want %d", got, want)
		}
	}

	max, err := repo.MaxBatchNumber(ctx, nil, doc.ID)
	if err != nil {
		t.Fatalf("MaxBatchNumber: %v", err)
	}
	if max != 3 {
		t.Fatalf("max = %d, want 3", max)
	}
}

func TestMaxBatchNumber_ZeroWhenEmpty(t *testing.T) {
	db, log := newTestDB(t)
	repo := NewQuizItemRepo(db, log)
	doc := seedDoc(t, db)

	max, err := repo.MaxBatchNumber(context.Background(), nil, doc.ID)
	if err != nil {
		t.Fatalf("MaxBatchNumber: %v", err)
	}
	if max != 0 {
		t.Fatalf("max = %d, want 0", max)
	}
}

func TestGetByDocumentAndBatch_SeqOrder(t *testing.T) {
	db, log := newTestDB(t)
	repo := NewQuizItemRepo(db, log)
	doc := seedDoc(t, db)
	ctx := context.Background()

	// Insert out of sequence order on purpose.
	for _, seq := range []int{3, 1, 2} {
		item := &types.QuizItem{
			ID:            uuid.New(),
			DocumentID:    doc.ID,
			BatchNumber:   1,
			Seq:           seq,
			Question:      "Q?",
			Options:       []byte(`["a"]`),
			CorrectAnswer: "a",
			Explanation:   "e",
		}
		if _, err := repo.CreateBatch(ctx, nil, []*types.QuizItem{item}); err != nil {
			t.Fatalf("insert seq %d: %v", seq, err)
		}
	}

	items, err := repo.GetByDocumentAndBatch(ctx, nil, doc.ID, 1)
	if err != nil {
		t.Fatalf("GetByDocumentAndBatch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	for i, item := range items {
		if item.Seq != i+1 {
			t.Fatalf("position %d has seq %d", i, item.Seq)
		}
	}
}

func TestProgressGetOrCreate_ConvergesOnOneRow(t *testing.T) {
	db, log := newTestDB(t)
	repo := NewProgressRecordRepo(db, log)
	doc := seedDoc(t, db)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, nil, doc.UserID, doc.ID)
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	second, err := repo.GetOrCreate(ctx, nil, doc.UserID, doc.ID)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate progress rows: %s vs %s", first.ID, second.ID)
	}

	var count int64
	if err := db.Model(&types.ProgressRecord{}).
		Where("user_id = ? AND document_id = ?", doc.UserID, doc.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}

func TestAttemptStats_EmptyAndAggregated(t *testing.T) {
	db, log := newTestDB(t)
	progressRepo := NewProgressRecordRepo(db, log)
	attemptRepo := NewAttemptRecordRepo(db, log)
	doc := seedDoc(t, db)
	ctx := context.Background()

	progress, err := progressRepo.GetOrCreate(ctx, nil, doc.UserID, doc.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	stats, err := attemptRepo.Stats(ctx, nil, progress.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 0 || stats.Average != 0 {
		t.Fatalf("empty stats = %+v", stats)
	}

	for _, score := range []int{60, 80, 100} {
		attempt := &types.AttemptRecord{
			ID:          uuid.New(),
			ProgressID:  progress.ID,
			BatchNumber: 1,
			Score:       score,
			TotalCount:  5,
			Results:     []byte(`[]`),
		}
		if _, err := attemptRepo.Create(ctx, nil, attempt); err != nil {
			t.Fatalf("append attempt: %v", err)
		}
	}

	stats, err = attemptRepo.Stats(ctx, nil, progress.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 3 || stats.Average != 80 {
		t.Fatalf("stats = %+v, want count 3 average 80", stats)
	}
}
