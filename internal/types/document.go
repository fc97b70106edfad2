package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DocumentStatusPending    = "PENDING"
	DocumentStatusProcessing = "PROCESSING"
	DocumentStatusCompleted  = "COMPLETED"
	DocumentStatusFailed     = "FAILED"
)

// Document is an uploaded artifact owned by exactly one user. Once
// COMPLETED it is immutable except for the chapter-count backfill.
type Document struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	OriginalName  string         `gorm:"column:original_name;not null" json:"original_name"`
	MimeType      string         `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes     int64          `gorm:"column:size_bytes" json:"size_bytes"`
	Status        string         `gorm:"column:status;not null;default:'PENDING'" json:"status"`
	TotalChapters int            `gorm:"column:total_chapters;not null;default:0" json:"total_chapters"`
	VectorRef     string         `gorm:"column:vector_ref" json:"vector_ref,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }
