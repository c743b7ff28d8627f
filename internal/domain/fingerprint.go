package domain

import "time"

// FileFingerprint is the content-derived identity of an uploaded file.
// It is a value type, not a table: persistence happens through
// FileProcessingCache keyed by ContentHash.
type FileFingerprint struct {
	ContentHash string    `json:"content_hash"`
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	MimeType    string    `json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Equal treats two fingerprints as the same content iff hash, size and
// mime type all match. Size must agree even when hashes collide; the
// fallback hash is weak enough that hash equality alone is not trusted.
func (f FileFingerprint) Equal(other FileFingerprint) bool {
	return f.ContentHash == other.ContentHash &&
		f.SizeBytes == other.SizeBytes &&
		f.MimeType == other.MimeType
}

// Valid reports whether the fingerprint is well-formed enough to use as
// a cache key.
func (f FileFingerprint) Valid() bool {
	if len(f.ContentHash) < 8 {
		return false
	}
	if f.SizeBytes < 0 {
		return false
	}
	return !f.CreatedAt.IsZero()
}
