package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schedulebud/backend/internal/http/response"
	"github.com/schedulebud/backend/internal/realtime"
	"github.com/schedulebud/backend/internal/requestdata"
	"github.com/schedulebud/backend/internal/services"
)

const defaultMaxImportBytes = 25 << 20

type ImportExportHandler struct {
	importService  services.ImportService
	exportService  services.ExportService
	events         *realtime.Dispatcher
	maxImportBytes int64
	archiveExports bool
}

func NewImportExportHandler(
	importService services.ImportService,
	exportService services.ExportService,
	events *realtime.Dispatcher,
	maxImportBytes int64,
	archiveExports bool,
) *ImportExportHandler {
	if maxImportBytes <= 0 {
		maxImportBytes = defaultMaxImportBytes
	}
	return &ImportExportHandler{
		importService:  importService,
		exportService:  exportService,
		events:         events,
		maxImportBytes: maxImportBytes,
		archiveExports: archiveExports,
	}
}

func (h *ImportExportHandler) Import(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if fileHeader.Size > h.maxImportBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("file exceeds %d bytes", h.maxImportBytes))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	format := c.PostForm("format")
	if format == "" {
		format = formatFromFilename(fileHeader.Filename)
	}
	opts := services.ImportOptions{
		Format:         format,
		Preview:        c.PostForm("preview") == "true",
		ConflictPolicy: services.ConflictPolicy(c.PostForm("conflict_policy")),
		SkipDuplicates: c.PostForm("skip_duplicates") != "false",
	}

	channel := realtime.UserChannel(rd.UserID)
	onProgress := func(p services.ImportProgress) {
		if h.events == nil {
			return
		}
		h.events.Dispatch(c.Request.Context(), realtime.Message{
			Channel: channel,
			Event:   realtime.EventImportProgress,
			Data:    p,
		})
	}

	summary, err := h.importService.Run(c.Request.Context(), rd.UserID, raw, opts, onProgress)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "import_failed", err)
		return
	}
	if h.events != nil {
		h.events.Dispatch(c.Request.Context(), realtime.Message{
			Channel: channel,
			Event:   realtime.EventImportComplete,
			Data:    summary,
		})
	}
	response.RespondOK(c, summary)
}

func (h *ImportExportHandler) Export(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	archive := h.archiveExports
	if raw, ok := c.GetQuery("archive"); ok {
		archive = raw == "true"
	}
	opts := services.ExportOptions{
		Format:  c.DefaultQuery("format", "json"),
		Archive: archive,
		Filters: services.ExportFilters{
			Completion: c.Query("completion"),
		},
	}
	if from, ok := parseDateParam(c.Query("from")); ok {
		opts.Filters.From = &from
	}
	if to, ok := parseDateParam(c.Query("to")); ok {
		opts.Filters.To = &to
	}
	for _, raw := range strings.Split(c.Query("class_ids"), ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_class_id", err)
			return
		}
		opts.Filters.ClassIDs = append(opts.Filters.ClassIDs, id)
	}

	artifact, err := h.exportService.Export(c.Request.Context(), rd.UserID, opts)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "export_failed", err)
		return
	}
	writeArtifact(c, artifact)
}

func (h *ImportExportHandler) ExportTermArchive(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	term := c.Query("term")
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_year", err)
		return
	}
	artifact, err := h.exportService.ExportTermArchive(c.Request.Context(), rd.UserID, term, year)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "export_failed", err)
		return
	}
	writeArtifact(c, artifact)
}

func writeArtifact(c *gin.Context, artifact *services.ExportArtifact) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

func formatFromFilename(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.ToLower(name[i+1:])
	}
	return ""
}

func parseDateParam(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
