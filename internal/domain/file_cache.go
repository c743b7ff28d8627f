package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProcessingStatusPending    = "pending"
	ProcessingStatusProcessing = "processing"
	ProcessingStatusCompleted  = "completed"
	ProcessingStatusFailed     = "failed"
)

// FileProcessingCache stores per-fingerprint processing results so a
// re-uploaded file can skip extraction and task generation entirely.
type FileProcessingCache struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContentHash string    `gorm:"column:content_hash;not null;uniqueIndex" json:"content_hash"`

	Filename  string `gorm:"column:filename;not null" json:"filename"`
	SizeBytes int64  `gorm:"column:size_bytes" json:"size_bytes"`
	MimeType  string `gorm:"column:mime_type" json:"mime_type"`

	ProcessingStatus string `gorm:"column:processing_status;not null;default:'pending';index" json:"processing_status"`

	ExtractedText       *string `gorm:"column:extracted_text;type:text" json:"extracted_text,omitempty"`
	ExtractedTextLength int     `gorm:"column:extracted_text_length" json:"extracted_text_length"`
	ExtractionMethod    string  `gorm:"column:extraction_method" json:"extraction_method,omitempty"`

	GeneratedTasks         datatypes.JSON `gorm:"column:generated_tasks;type:jsonb" json:"generated_tasks,omitempty"`
	TaskGenerationMetadata datatypes.JSON `gorm:"column:task_generation_metadata;type:jsonb" json:"task_generation_metadata,omitempty"`

	EmbeddingChunks   int  `gorm:"column:embedding_chunks" json:"embedding_chunks"`
	EmbeddingsCreated bool `gorm:"column:embeddings_created;not null;default:false" json:"embeddings_created"`

	ProcessingDurationMs int64 `gorm:"column:processing_duration_ms" json:"processing_duration_ms,omitempty"`

	UseCount   int        `gorm:"column:use_count;not null;default:1" json:"use_count"`
	LastUsedAt time.Time  `gorm:"column:last_used_at;not null;default:now()" json:"last_used_at"`
	ExpiresAt  *time.Time `gorm:"column:expires_at;index" json:"expires_at,omitempty"`

	// Cached task drafts are class-scoped: a draft list generated for one
	// class must not be replayed into another.
	ClassID *uuid.UUID `gorm:"type:uuid;index" json:"class_id,omitempty"`
	UserID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FileProcessingCache) TableName() string { return "file_processing_cache" }

// TaskDraft is one cached generated task, stored in GeneratedTasks.
type TaskDraft struct {
	Title    string `json:"title"`
	DueDate  string `json:"due_date,omitempty"`
	Priority string `json:"priority,omitempty"`
	TaskType string `json:"task_type,omitempty"`
}
