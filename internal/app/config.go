package app

import (
	"time"

	"github.com/schedulebud/backend/internal/pkg/logger"
	"github.com/schedulebud/backend/internal/utils"
)

type Config struct {
	Addr            string
	SweeperInterval time.Duration
	ArchiveExports  bool
	EnableRedisBus  bool
	EnableGCSBucket bool
	MaxUploadBytes  int64
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Addr:            utils.GetEnv("HTTP_ADDR", ":8080", log),
		SweeperInterval: time.Duration(utils.GetEnvAsInt("CACHE_SWEEP_INTERVAL_MINUTES", 360, log)) * time.Minute,
		ArchiveExports:  utils.GetEnvAsBool("ARCHIVE_EXPORTS", false, log),
		EnableRedisBus:  utils.GetEnvAsBool("ENABLE_REDIS_BUS", false, log),
		EnableGCSBucket: utils.GetEnvAsBool("ENABLE_GCS_BUCKET", false, log),
		MaxUploadBytes:  int64(utils.GetEnvAsInt("MAX_UPLOAD_MB", 25, log)) << 20,
	}
}
