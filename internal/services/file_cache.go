package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/schedulebud/backend/internal/data/repos"
	types "github.com/schedulebud/backend/internal/domain"
	"github.com/schedulebud/backend/internal/pkg/dbctx"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

// FileCacheService is the fingerprint -> processing-state cache that
// lets a re-uploaded file skip extraction and task generation.
//
// The cache is an optimization, never a correctness dependency: every
// method swallows backing-store failures, logs them, and reports a miss
// (nil / false / 0). No call on this interface returns an error.
type FileCacheService interface {
	CheckFingerprint(ctx context.Context, hash string) *types.FileProcessingCache
	StoreFingerprint(ctx context.Context, fp types.FileFingerprint, opts StoreFingerprintOptions) *types.FileProcessingCache
	UpdateProcessingStatus(ctx context.Context, hash, status string, extra *ProcessingExtra) bool
	GetCachedText(ctx context.Context, hash string) *string
	GetCachedTasks(ctx context.Context, hash string, classID *uuid.UUID) []types.TaskDraft
	CleanupExpired(ctx context.Context) int
	StartSweeper(ctx context.Context, interval time.Duration)
}

type StoreFingerprintOptions struct {
	UserID  uuid.UUID
	ClassID *uuid.UUID
	Status  string
	TTL     time.Duration
}

// ProcessingExtra carries the optional fields of a status update; only
// non-nil fields are written.
type ProcessingExtra struct {
	ExtractedText          *string
	ExtractionMethod       *string
	GeneratedTasks         []types.TaskDraft
	TaskGenerationMetadata map[string]any
	EmbeddingChunks        *int
	EmbeddingsCreated      *bool
	ProcessingDurationMs   *int64
}

type fileCacheService struct {
	db        *gorm.DB
	log       *logger.Logger
	cacheRepo repos.FileCacheRepo
}

func NewFileCacheService(db *gorm.DB, baseLog *logger.Logger, cacheRepo repos.FileCacheRepo) FileCacheService {
	return &fileCacheService{
		db:        db,
		log:       baseLog.With("service", "FileCacheService"),
		cacheRepo: cacheRepo,
	}
}

func (s *fileCacheService) CheckFingerprint(ctx context.Context, hash string) *types.FileProcessingCache {
	if strings.TrimSpace(hash) == "" {
		return nil
	}
	entry, err := s.cacheRepo.GetByContentHash(dbctx.Context{Ctx: ctx}, hash)
	if err != nil {
		s.log.Warn("cache lookup failed, treating as miss", "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}
	if entry.ExpiresAt != nil && entry.ExpiresAt.Before(time.Now()) {
		return nil
	}

	// bump usage off the request path; a lost bump is harmless
	go func(contentHash string) {
		bumpCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cacheRepo.Touch(dbctx.Context{Ctx: bumpCtx}, contentHash, time.Now()); err != nil {
			s.log.Debug("cache touch failed", "error", err)
		}
	}(entry.ContentHash)

	return entry
}

func (s *fileCacheService) StoreFingerprint(ctx context.Context, fp types.FileFingerprint, opts StoreFingerprintOptions) *types.FileProcessingCache {
	if !fp.Valid() {
		s.log.Warn("refusing to cache malformed fingerprint", "filename", fp.Filename)
		return nil
	}
	status := opts.Status
	if status == "" {
		status = types.ProcessingStatusPending
	}
	now := time.Now()
	entry := &types.FileProcessingCache{
		ID:               uuid.New(),
		ContentHash:      fp.ContentHash,
		Filename:         fp.Filename,
		SizeBytes:        fp.SizeBytes,
		MimeType:         fp.MimeType,
		ProcessingStatus: status,
		UseCount:         1,
		LastUsedAt:       now,
		UserID:           opts.UserID,
		ClassID:          opts.ClassID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if opts.TTL > 0 {
		expiresAt := now.Add(opts.TTL)
		entry.ExpiresAt = &expiresAt
	}

	err := s.cacheRepo.Create(dbctx.Context{Ctx: ctx}, entry)
	if err == nil {
		return entry
	}

	if isUniqueViolation(err) {
		// concurrent upload of the same content: first writer wins,
		// re-fetch and hand back the existing entry
		existing, getErr := s.cacheRepo.GetByContentHash(dbctx.Context{Ctx: ctx}, fp.ContentHash)
		if getErr != nil {
			s.log.Warn("cache re-fetch after duplicate insert failed", "error", getErr)
			return nil
		}
		return existing
	}
	if isForeignKeyViolation(err) {
		s.log.Warn("cache insert references missing class or user, skipping cache",
			"error", err, "user_id", opts.UserID)
		return nil
	}

	s.log.Warn("cache insert failed, continuing without cache", "error", err)
	return nil
}

func (s *fileCacheService) UpdateProcessingStatus(ctx context.Context, hash, status string, extra *ProcessingExtra) bool {
	if strings.TrimSpace(hash) == "" {
		return false
	}
	now := time.Now()
	updates := map[string]interface{}{
		"processing_status": status,
		"last_used_at":      now,
		"updated_at":        now,
	}
	if extra != nil {
		if extra.ExtractedText != nil {
			updates["extracted_text"] = *extra.ExtractedText
			updates["extracted_text_length"] = len(*extra.ExtractedText)
		}
		if extra.ExtractionMethod != nil {
			updates["extraction_method"] = *extra.ExtractionMethod
		}
		if extra.GeneratedTasks != nil {
			raw, err := json.Marshal(extra.GeneratedTasks)
			if err != nil {
				s.log.Warn("could not serialize generated tasks for cache", "error", err)
			} else {
				updates["generated_tasks"] = datatypes.JSON(raw)
			}
		}
		if extra.TaskGenerationMetadata != nil {
			raw, err := json.Marshal(extra.TaskGenerationMetadata)
			if err == nil {
				updates["task_generation_metadata"] = datatypes.JSON(raw)
			}
		}
		if extra.EmbeddingChunks != nil {
			updates["embedding_chunks"] = *extra.EmbeddingChunks
		}
		if extra.EmbeddingsCreated != nil {
			// embeddings_created=true requires a positive chunk count
			if *extra.EmbeddingsCreated && (extra.EmbeddingChunks == nil || *extra.EmbeddingChunks <= 0) {
				s.log.Warn("dropping embeddings_created flag without a positive chunk count",
					"content_hash", hash)
			} else {
				updates["embeddings_created"] = *extra.EmbeddingsCreated
			}
		}
		if extra.ProcessingDurationMs != nil {
			updates["processing_duration_ms"] = *extra.ProcessingDurationMs
		}
	}

	rows, err := s.cacheRepo.UpdateByContentHash(dbctx.Context{Ctx: ctx}, hash, updates)
	if err != nil {
		s.log.Warn("cache status update failed", "error", err, "status", status)
		return false
	}
	return rows > 0
}

func (s *fileCacheService) GetCachedText(ctx context.Context, hash string) *string {
	entry := s.lookup(ctx, hash)
	if entry == nil || entry.ProcessingStatus == types.ProcessingStatusFailed {
		return nil
	}
	return entry.ExtractedText
}

func (s *fileCacheService) GetCachedTasks(ctx context.Context, hash string, classID *uuid.UUID) []types.TaskDraft {
	entry := s.lookup(ctx, hash)
	if entry == nil || entry.ProcessingStatus != types.ProcessingStatusCompleted {
		return nil
	}
	if len(entry.GeneratedTasks) == 0 {
		return nil
	}
	// a draft list generated for one class must not leak into another
	if classID != nil {
		if entry.ClassID == nil || *entry.ClassID != *classID {
			return nil
		}
	}
	var drafts []types.TaskDraft
	if err := json.Unmarshal(entry.GeneratedTasks, &drafts); err != nil {
		s.log.Warn("cached generated tasks are unreadable", "error", err)
		return nil
	}
	return drafts
}

func (s *fileCacheService) CleanupExpired(ctx context.Context) int {
	count, err := s.cacheRepo.DeleteExpired(dbctx.Context{Ctx: ctx}, time.Now())
	if err != nil {
		s.log.Warn("cache expiry sweep failed", "error", err)
		return 0
	}
	if count > 0 {
		s.log.Info("expired cache entries removed", "count", count)
	}
	return int(count)
}

func (s *fileCacheService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(ctx)
			}
		}
	}()
}

func (s *fileCacheService) lookup(ctx context.Context, hash string) *types.FileProcessingCache {
	if strings.TrimSpace(hash) == "" {
		return nil
	}
	entry, err := s.cacheRepo.GetByContentHash(dbctx.Context{Ctx: ctx}, hash)
	if err != nil {
		s.log.Warn("cache lookup failed, treating as miss", "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}
	// expired entries are misses on every read path, not just CheckFingerprint
	if entry.ExpiresAt != nil && entry.ExpiresAt.Before(time.Now()) {
		return nil
	}
	return entry
}

// isUniqueViolation matches the duplicate-key errors of the drivers we
// run against (postgres 23505, sqlite UNIQUE constraint message).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23503") ||
		strings.Contains(msg, "foreign key") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed")
}
