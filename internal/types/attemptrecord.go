package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AttemptRecord is one graded submission against a specific batch.
// Immutable after creation; multiple attempts per batch are retained.
type AttemptRecord struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProgressID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"progress_id"`
	Progress     *ProgressRecord `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProgressID;references:ID" json:"progress,omitempty"`
	BatchNumber  int             `gorm:"column:batch_number;not null" json:"batch_number"`
	Score        int             `gorm:"column:score;not null" json:"score"`
	CorrectCount int             `gorm:"column:correct_count;not null" json:"correct_count"`
	TotalCount   int             `gorm:"column:total_count;not null" json:"total_count"`
	Results      datatypes.JSON  `gorm:"column:results;type:jsonb;not null" json:"results"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

func (AttemptRecord) TableName() string { return "attempt_record" }
