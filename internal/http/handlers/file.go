package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schedulebud/backend/internal/http/response"
	"github.com/schedulebud/backend/internal/requestdata"
	"github.com/schedulebud/backend/internal/services"
)

type FileHandler struct {
	fileService    services.FileService
	maxUploadBytes int64
}

func NewFileHandler(fileService services.FileService, maxUploadBytes int64) *FileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	return &FileHandler{fileService: fileService, maxUploadBytes: maxUploadBytes}
}

// Upload fingerprints the file and either returns the cached
// generation result or runs the processing pipeline.
func (fh *FileHandler) Upload(c *gin.Context) {
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
	if fileHeader.Size > fh.maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("file exceeds %d bytes", fh.maxUploadBytes))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	var classID *uuid.UUID
	if raw := c.PostForm("class_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_class_id", err)
			return
		}
		classID = &id
	}

	meta := services.FileMeta{
		Filename:  fileHeader.Filename,
		SizeBytes: fileHeader.Size,
		MimeType:  fileHeader.Header.Get("Content-Type"),
	}
	result, err := fh.fileService.ProcessUpload(c.Request.Context(), rd.UserID, meta, data, classID)
	if err != nil {
		response.RespondError(c, http.StatusUnprocessableEntity, "processing_failed", err)
		return
	}
	response.RespondOK(c, result)
}
