package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schedulebud/backend/internal/requestdata"
	"github.com/schedulebud/backend/internal/services"
)

type stubImportService struct {
	calls int
}

func (s *stubImportService) Run(_ context.Context, _ uuid.UUID, _ []byte, _ services.ImportOptions, _ services.ProgressFunc) (*services.ImportSummary, error) {
	s.calls++
	return &services.ImportSummary{Success: true}, nil
}

type stubExportService struct {
	lastOpts services.ExportOptions
}

func (s *stubExportService) Export(_ context.Context, _ uuid.UUID, opts services.ExportOptions) (*services.ExportArtifact, error) {
	s.lastOpts = opts
	return &services.ExportArtifact{Filename: "schedulebud_tasks_2024-03-15.json", ContentType: "application/json", Data: []byte("{}")}, nil
}

func (s *stubExportService) ExportTermArchive(_ context.Context, _ uuid.UUID, _ string, _ int) (*services.ExportArtifact, error) {
	return &services.ExportArtifact{Filename: "schedulebud_archive_fall_2024_2024-03-15.json", ContentType: "application/json", Data: []byte("{}")}, nil
}

// authenticated wraps a handler with a fixed request identity the way
// the auth middleware would.
func authenticated(userID uuid.UUID, handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{UserID: userID})
		c.Request = c.Request.WithContext(ctx)
		handler(c)
	}
}

func multipartFile(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, w.FormDataContentType()
}

func TestImportRejectsOversizedFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	importSvc := &stubImportService{}
	h := NewImportExportHandler(importSvc, &stubExportService{}, nil, 16, false)

	router := gin.New()
	router.POST("/import", authenticated(uuid.New(), h.Import))

	body, contentType := multipartFile(t, "file", "tasks.json", bytes.Repeat([]byte("x"), 64))
	req := httptest.NewRequest(http.MethodPost, "/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if importSvc.calls != 0 {
		t.Fatalf("oversized file must not reach the import service")
	}
}

func TestImportWithinLimitRuns(t *testing.T) {
	gin.SetMode(gin.TestMode)
	importSvc := &stubImportService{}
	h := NewImportExportHandler(importSvc, &stubExportService{}, nil, 1<<20, false)

	router := gin.New()
	router.POST("/import", authenticated(uuid.New(), h.Import))

	body, contentType := multipartFile(t, "file", "tasks.json", []byte(`{"version":"1.0","tasks":[]}`))
	req := httptest.NewRequest(http.MethodPost, "/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if importSvc.calls != 1 {
		t.Fatalf("import service calls = %d, want 1", importSvc.calls)
	}
}

func TestExportArchiveDefaultFromConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exportSvc := &stubExportService{}
	h := NewImportExportHandler(&stubImportService{}, exportSvc, nil, 0, true)

	router := gin.New()
	router.GET("/export", authenticated(uuid.New(), h.Export))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export?format=json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !exportSvc.lastOpts.Archive {
		t.Fatalf("archive default should come from configuration")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export?format=json&archive=false", nil))
	if exportSvc.lastOpts.Archive {
		t.Fatalf("explicit archive=false must override the default")
	}
}
