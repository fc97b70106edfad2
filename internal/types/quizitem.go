package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QuizItem belongs to exactly one (document, batch_number) pair. Batches
// are append-only: regenerating quizzes for a document creates a new
// batch, prior batches stay queryable forever.
type QuizItem struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_doc_batch_seq,unique" json:"document_id"`
	Document      *Document      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	BatchNumber   int            `gorm:"column:batch_number;not null;index:idx_doc_batch_seq,unique" json:"batch_number"`
	Seq           int            `gorm:"column:seq;not null;index:idx_doc_batch_seq,unique" json:"seq"`
	Question      string         `gorm:"column:question;not null" json:"question"`
	Options       datatypes.JSON `gorm:"column:options;type:jsonb;not null" json:"options"`
	CorrectAnswer string         `gorm:"column:correct_answer;not null" json:"correct_answer"`
	Explanation   string         `gorm:"column:explanation;not null" json:"explanation"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
}

func (QuizItem) TableName() string { return "quiz_item" }
