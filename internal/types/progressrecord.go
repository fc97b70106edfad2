package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProgressStatusInProgress = "IN_PROGRESS"
	ProgressStatusSuccess    = "SUCCESS"
	ProgressStatusFail       = "FAIL"
)

// ProgressRecord is the durable per-(user, document) learning aggregate.
// AverageScore is always the mean over the full attempt history for the
// pair, recomputed on every new attempt.
type ProgressRecord struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_document,unique" json:"user_id"`
	User              *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	DocumentID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_document,unique" json:"document_id"`
	Document          *Document      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	CompletedChapters int            `gorm:"column:completed_chapters;not null;default:0" json:"completed_chapters"`
	AverageScore      float64        `gorm:"column:average_score;not null;default:0" json:"average_score"`
	AttemptCount      int            `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	Status            string         `gorm:"column:status;not null;default:'IN_PROGRESS'" json:"status"`
	LastAccessedAt    *time.Time     `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProgressRecord) TableName() string { return "progress_record" }
