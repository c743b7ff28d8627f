package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/schedulebud/backend/internal/domain"
)

// fakeFileCache is an in-memory FileCacheService for exercising the
// upload pipeline without a database.
type fakeFileCache struct {
	entries  map[string]*types.FileProcessingCache
	tasks    map[string][]types.TaskDraft
	statuses []string
}

func newFakeFileCache() *fakeFileCache {
	return &fakeFileCache{
		entries: map[string]*types.FileProcessingCache{},
		tasks:   map[string][]types.TaskDraft{},
	}
}

func (c *fakeFileCache) CheckFingerprint(_ context.Context, hash string) *types.FileProcessingCache {
	return c.entries[hash]
}

func (c *fakeFileCache) StoreFingerprint(_ context.Context, fp types.FileFingerprint, opts StoreFingerprintOptions) *types.FileProcessingCache {
	entry := &types.FileProcessingCache{
		ID:               uuid.New(),
		UserID:           opts.UserID,
		ContentHash:      fp.ContentHash,
		ProcessingStatus: opts.Status,
	}
	c.entries[fp.ContentHash] = entry
	return entry
}

func (c *fakeFileCache) UpdateProcessingStatus(_ context.Context, hash, status string, extra *ProcessingExtra) bool {
	c.statuses = append(c.statuses, status)
	if entry, ok := c.entries[hash]; ok {
		entry.ProcessingStatus = status
	}
	if extra != nil && extra.GeneratedTasks != nil {
		c.tasks[hash] = extra.GeneratedTasks
	}
	return true
}

func (c *fakeFileCache) GetCachedText(_ context.Context, _ string) *string { return nil }

func (c *fakeFileCache) GetCachedTasks(_ context.Context, hash string, _ *uuid.UUID) []types.TaskDraft {
	entry, ok := c.entries[hash]
	if !ok || entry.ProcessingStatus != types.ProcessingStatusCompleted {
		return nil
	}
	return c.tasks[hash]
}

func (c *fakeFileCache) CleanupExpired(_ context.Context) int { return 0 }

func (c *fakeFileCache) StartSweeper(_ context.Context, _ time.Duration) {}

type countingGenerator struct {
	calls  int
	drafts []types.TaskDraft
	err    error
}

func (g *countingGenerator) GenerateTasks(_ context.Context, _ string, _ *uuid.UUID) ([]types.TaskDraft, map[string]interface{}, error) {
	g.calls++
	if g.err != nil {
		return nil, nil, g.err
	}
	return g.drafts, map[string]interface{}{"model": "test"}, nil
}

func newFileFixture(t *testing.T, gen TaskGenerator) (*fakeFileCache, FileService) {
	t.Helper()
	log := testLogger(t)
	cache := newFakeFileCache()
	svc := NewFileService(nil, log,
		NewFingerprintService(log, HashAlgorithmSHA256),
		cache, nil, NewPlainTextExtractor(), gen)
	return cache, svc
}

func uploadMeta(name string, size int64) FileMeta {
	return FileMeta{Filename: name, SizeBytes: size, MimeType: "text/plain"}
}

func TestProcessUploadMissRunsPipeline(t *testing.T) {
	gen := &countingGenerator{drafts: []types.TaskDraft{{Title: "Read chapter 3"}}}
	cache, svc := newFileFixture(t, gen)

	data := []byte("syllabus week one")
	res, err := svc.ProcessUpload(context.Background(), uuid.New(), uploadMeta("syllabus.txt", int64(len(data))), data, nil)
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if res.Cached {
		t.Fatalf("first upload must not be a cache hit")
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls)
	}
	if len(res.Tasks) != 1 || res.Tasks[0].Title != "Read chapter 3" {
		t.Fatalf("tasks = %+v", res.Tasks)
	}

	entry := cache.entries[res.Fingerprint.ContentHash]
	if entry == nil || entry.ProcessingStatus != types.ProcessingStatusCompleted {
		t.Fatalf("cache entry should end completed, got %+v", entry)
	}
}

func TestProcessUploadCacheHitSkipsGenerator(t *testing.T) {
	gen := &countingGenerator{drafts: []types.TaskDraft{{Title: "Read chapter 3"}}}
	_, svc := newFileFixture(t, gen)
	userID := uuid.New()
	data := []byte("syllabus week one")
	meta := uploadMeta("syllabus.txt", int64(len(data)))

	if _, err := svc.ProcessUpload(context.Background(), userID, meta, data, nil); err != nil {
		t.Fatalf("first upload: %v", err)
	}

	res, err := svc.ProcessUpload(context.Background(), userID, meta, data, nil)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if !res.Cached {
		t.Fatalf("identical re-upload should hit the cache")
	}
	if gen.calls != 1 {
		t.Fatalf("generator ran %d times, want 1", gen.calls)
	}
	if len(res.Tasks) != 1 {
		t.Fatalf("cached tasks missing: %+v", res)
	}
}

func TestProcessUploadGeneratorFailureMarksFailed(t *testing.T) {
	gen := &countingGenerator{err: errors.New("provider down")}
	cache, svc := newFileFixture(t, gen)

	data := []byte("syllabus week one")
	_, err := svc.ProcessUpload(context.Background(), uuid.New(), uploadMeta("syllabus.txt", int64(len(data))), data, nil)
	if err == nil {
		t.Fatalf("generator failure must surface")
	}
	last := cache.statuses[len(cache.statuses)-1]
	if last != types.ProcessingStatusFailed {
		t.Fatalf("last status = %q, want failed", last)
	}
}

func TestProcessUploadRejectsUnsupportedMime(t *testing.T) {
	gen := &countingGenerator{}
	_, svc := newFileFixture(t, gen)

	meta := FileMeta{Filename: "slides.pptx", SizeBytes: 10, MimeType: "application/vnd.ms-powerpoint"}
	if _, err := svc.ProcessUpload(context.Background(), uuid.New(), meta, []byte("0123456789"), nil); err == nil {
		t.Fatalf("unsupported mime must fail extraction")
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not run when extraction fails")
	}
}
