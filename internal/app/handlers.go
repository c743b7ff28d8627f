package app

import (
	"github.com/schedulebud/backend/internal/http/handlers"
	"github.com/schedulebud/backend/internal/pkg/logger"
	"github.com/schedulebud/backend/internal/realtime"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	ImportExport *handlers.ImportExportHandler
	File         *handlers.FileHandler
	Planner      *handlers.PlannerHandler
	SSE          *handlers.SSEHandler
}

func wireHandlers(log *logger.Logger, cfg Config, s Services, r Repos, hub *realtime.Hub, events *realtime.Dispatcher) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       handlers.NewHealthHandler(),
		Auth:         handlers.NewAuthHandler(s.Auth),
		ImportExport: handlers.NewImportExportHandler(s.Import, s.Export, events, cfg.MaxUploadBytes, cfg.ArchiveExports),
		File:         handlers.NewFileHandler(s.File, cfg.MaxUploadBytes),
		Planner:      handlers.NewPlannerHandler(r.Class, r.TaskType, r.Task),
		SSE:          handlers.NewSSEHandler(hub),
	}
}
