package services

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	types "github.com/schedulebud/backend/internal/domain"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

// FingerprintService derives stable content identities for uploaded
// files. Hashing must never fail and never return an empty string: a
// cryptographic digest is preferred, with a deterministic non-crypto
// fallback behind it. Whole buffers are hashed in one pass; files in
// the hundreds of megabytes are out of scope for this subsystem.
type FingerprintService interface {
	HashBytes(data []byte) string
	HashText(text string) string
	FingerprintFile(meta FileMeta, data []byte) types.FileFingerprint
}

type FileMeta struct {
	Filename   string
	SizeBytes  int64
	MimeType   string
	ModifiedAt time.Time
}

type fingerprintService struct {
	log       *logger.Logger
	algorithm string
}

const (
	HashAlgorithmSHA256 = "sha256"
	HashAlgorithmSHA1   = "sha1"
)

func NewFingerprintService(baseLog *logger.Logger, algorithm string) FingerprintService {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm != HashAlgorithmSHA1 {
		algorithm = HashAlgorithmSHA256
	}
	return &fingerprintService{
		log:       baseLog.With("service", "FingerprintService"),
		algorithm: algorithm,
	}
}

// hashStrategy is one attempt at producing a content hash. Strategies
// run in order; the first success wins, and the last one cannot fail.
type hashStrategy struct {
	name string
	run  func() (string, error)
}

func (fs *fingerprintService) HashBytes(data []byte) string {
	strategies := []hashStrategy{
		{name: "crypto", run: func() (string, error) { return cryptoDigest(fs.algorithm, data) }},
		{name: "fallback", run: func() (string, error) { return fallbackHash(string(data)), nil }},
	}
	return fs.runStrategies(strategies)
}

func (fs *fingerprintService) HashText(text string) string {
	strategies := []hashStrategy{
		{name: "crypto", run: func() (string, error) { return cryptoDigest(fs.algorithm, []byte(text)) }},
		{name: "fallback", run: func() (string, error) { return fallbackHash(text), nil }},
	}
	return fs.runStrategies(strategies)
}

func (fs *fingerprintService) FingerprintFile(meta FileMeta, data []byte) types.FileFingerprint {
	var hash string
	if len(data) > 0 {
		hash = fs.HashBytes(data)
	} else {
		// content unavailable: degrade to a metadata+sample identity,
		// which still satisfies the never-fails contract
		hash = fallbackHash(metadataSampleString(meta, data))
	}
	return types.FileFingerprint{
		ContentHash: hash,
		Filename:    meta.Filename,
		SizeBytes:   meta.SizeBytes,
		MimeType:    meta.MimeType,
		CreatedAt:   time.Now().UTC(),
	}
}

func (fs *fingerprintService) runStrategies(strategies []hashStrategy) string {
	for _, s := range strategies {
		out, err := s.run()
		if err == nil && out != "" {
			return out
		}
		if err != nil {
			fs.log.Warn("hash strategy failed, trying next", "strategy", s.name, "error", err)
		}
	}
	// unreachable: the fallback strategy cannot fail
	return fallbackHash("")
}

func cryptoDigest(algorithm string, data []byte) (string, error) {
	switch algorithm {
	case HashAlgorithmSHA1:
		sum := sha1.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case HashAlgorithmSHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}

// fallbackHash is the deterministic non-crypto identity: a 32-bit
// FNV-1a digest, a 4-hex-digit length field, and a 2-hex-digit checksum
// over the first, middle and last bytes. Always exactly 14 hex chars.
func fallbackHash(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))

	length := len(s) & 0xFFFF

	checksum := 0
	if len(s) > 0 {
		checksum = (int(s[0]) + int(s[len(s)/2]) + int(s[len(s)-1])) & 0xFF
	}

	return fmt.Sprintf("%08x%04x%02x", h.Sum32(), length, checksum)
}

const metadataSampleSize = 1024

func metadataSampleString(meta FileMeta, data []byte) string {
	head := data
	if len(head) > metadataSampleSize {
		head = head[:metadataSampleSize]
	}
	tail := data
	if len(tail) > metadataSampleSize {
		tail = tail[len(tail)-metadataSampleSize:]
	}
	return strings.Join([]string{
		meta.Filename,
		fmt.Sprintf("%d", meta.SizeBytes),
		fmt.Sprintf("%d", meta.ModifiedAt.UnixMilli()),
		meta.MimeType,
		string(head),
		string(tail),
	}, "|")
}
