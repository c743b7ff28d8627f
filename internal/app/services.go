package app

import (
	"gorm.io/gorm"

	"github.com/schedulebud/backend/internal/clients/gcp"
	"github.com/schedulebud/backend/internal/pkg/logger"
	"github.com/schedulebud/backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Fingerprint services.FingerprintService
	FileCache   services.FileCacheService
	File        services.FileService
	Import      services.ImportService
	Export      services.ExportService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos) (Services, error) {
	log.Info("Wiring services...")

	var bucket gcp.BucketService
	if cfg.EnableGCSBucket {
		b, err := gcp.NewBucketService(log)
		if err != nil {
			return Services{}, err
		}
		bucket = b
	}

	fingerprint := services.NewFingerprintService(log, services.HashAlgorithmSHA256)
	fileCache := services.NewFileCacheService(db, log, r.FileCache)

	var archiver services.ArtifactArchiver
	if bucket != nil {
		archiver = bucket
	}

	return Services{
		Auth:        services.NewAuthService(db, log, r.User, r.UserToken),
		Fingerprint: fingerprint,
		FileCache:   fileCache,
		File: services.NewFileService(db, log, fingerprint, fileCache, bucket,
			services.NewPlainTextExtractor(), services.NewDisabledTaskGenerator()),
		Import: services.NewImportService(db, log, r.Class, r.TaskType, r.Task),
		Export: services.NewExportService(db, log, r.Class, r.TaskType, r.Task, archiver),
	}, nil
}
