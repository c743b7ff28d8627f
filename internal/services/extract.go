package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/schedulebud/backend/internal/pkg/errors"
)

// plainTextExtractor handles text-like uploads directly. PDF and image
// extraction belong to an external provider behind the same interface.
type plainTextExtractor struct{}

func NewPlainTextExtractor() TextExtractor { return plainTextExtractor{} }

func (plainTextExtractor) ExtractText(_ context.Context, meta FileMeta, data []byte) (string, string, error) {
	mime := strings.ToLower(meta.MimeType)
	textLike := strings.HasPrefix(mime, "text/") ||
		mime == "application/json" ||
		mime == "application/csv" ||
		strings.HasSuffix(strings.ToLower(meta.Filename), ".txt") ||
		strings.HasSuffix(strings.ToLower(meta.Filename), ".md")
	if !textLike {
		return "", "", fmt.Errorf("%w: cannot extract text from %q", apperrors.ErrUnsupportedFormat, meta.MimeType)
	}
	if !utf8.Valid(data) {
		return "", "", fmt.Errorf("%w: file is not valid UTF-8 text", apperrors.ErrUnsupportedFormat)
	}
	return string(data), "plain-text", nil
}
