package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schedulebud/backend/internal/clients/gcp"
	types "github.com/schedulebud/backend/internal/domain"
	apperrors "github.com/schedulebud/backend/internal/pkg/errors"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

// TaskGenerator turns extracted document text into task drafts. The
// real implementation lives outside this service; the app runs with
// the disabled one unless a provider is wired in.
type TaskGenerator interface {
	GenerateTasks(ctx context.Context, text string, classID *uuid.UUID) ([]types.TaskDraft, map[string]interface{}, error)
}

type disabledTaskGenerator struct{}

func (disabledTaskGenerator) GenerateTasks(context.Context, string, *uuid.UUID) ([]types.TaskDraft, map[string]interface{}, error) {
	return nil, nil, fmt.Errorf("%w: task generation is not configured", apperrors.ErrInvalidArgument)
}

func NewDisabledTaskGenerator() TaskGenerator { return disabledTaskGenerator{} }

// TextExtractor pulls plain text out of an uploaded file. Like the
// generator it is a pluggable boundary.
type TextExtractor interface {
	ExtractText(ctx context.Context, meta FileMeta, data []byte) (text string, method string, err error)
}

type UploadResult struct {
	Fingerprint types.FileFingerprint `json:"fingerprint"`
	Cached      bool                  `json:"cached"`
	Tasks       []types.TaskDraft     `json:"tasks"`
}

type FileService interface {
	ProcessUpload(ctx context.Context, userID uuid.UUID, meta FileMeta, data []byte, classID *uuid.UUID) (*UploadResult, error)
}

type fileService struct {
	db          *gorm.DB
	log         *logger.Logger
	fingerprint FingerprintService
	cache       FileCacheService
	bucket      gcp.BucketService
	extractor   TextExtractor
	generator   TaskGenerator
}

func NewFileService(
	db *gorm.DB,
	baseLog *logger.Logger,
	fingerprint FingerprintService,
	cache FileCacheService,
	bucket gcp.BucketService,
	extractor TextExtractor,
	generator TaskGenerator,
) FileService {
	if generator == nil {
		generator = NewDisabledTaskGenerator()
	}
	return &fileService{
		db:          db,
		log:         baseLog.With("service", "FileService"),
		fingerprint: fingerprint,
		cache:       cache,
		bucket:      bucket,
		extractor:   extractor,
		generator:   generator,
	}
}

// ProcessUpload fingerprints the blob and short-circuits with cached
// tasks when an identical file has already been processed. On a miss
// the full extract -> generate pipeline runs and its results are
// cached under the fingerprint for the next upload of the same file.
func (s *fileService) ProcessUpload(ctx context.Context, userID uuid.UUID, meta FileMeta, data []byte, classID *uuid.UUID) (*UploadResult, error) {
	fp := s.fingerprint.FingerprintFile(meta, data)

	if entry := s.cache.CheckFingerprint(ctx, fp.ContentHash); entry != nil {
		if tasks := s.cache.GetCachedTasks(ctx, fp.ContentHash, classID); tasks != nil {
			s.log.Info("cache hit, skipping processing",
				"content_hash", fp.ContentHash,
				"filename", meta.Filename,
				"task_count", len(tasks))
			return &UploadResult{Fingerprint: fp, Cached: true, Tasks: tasks}, nil
		}
	}

	s.cache.StoreFingerprint(ctx, fp, StoreFingerprintOptions{
		UserID:  userID,
		ClassID: classID,
		Status:  types.ProcessingStatusPending,
	})

	if s.bucket != nil {
		key := fmt.Sprintf("uploads/%s/%s_%s", userID, fp.ContentHash, meta.Filename)
		if _, err := s.bucket.UploadBytes(ctx, key, data, meta.MimeType); err != nil {
			// the blob copy is not required for processing
			s.log.Warn("failed to archive upload", "object_key", key, "error", err)
		}
	}

	s.cache.UpdateProcessingStatus(ctx, fp.ContentHash, types.ProcessingStatusProcessing, nil)

	started := time.Now()
	text, method, err := s.extractor.ExtractText(ctx, meta, data)
	if err != nil {
		s.cache.UpdateProcessingStatus(ctx, fp.ContentHash, types.ProcessingStatusFailed, nil)
		return nil, fmt.Errorf("extract text: %w", err)
	}

	tasks, genMeta, err := s.generator.GenerateTasks(ctx, text, classID)
	if err != nil {
		s.cache.UpdateProcessingStatus(ctx, fp.ContentHash, types.ProcessingStatusFailed, nil)
		return nil, fmt.Errorf("generate tasks: %w", err)
	}

	s.cache.UpdateProcessingStatus(ctx, fp.ContentHash, types.ProcessingStatusCompleted, &ProcessingExtra{
		ExtractedText:          &text,
		ExtractionMethod:       &method,
		GeneratedTasks:         tasks,
		TaskGenerationMetadata: genMeta,
		ProcessingDurationMs:   int64Ptr(time.Since(started).Milliseconds()),
	})

	return &UploadResult{Fingerprint: fp, Cached: false, Tasks: tasks}, nil
}

func int64Ptr(v int64) *int64 { return &v }
