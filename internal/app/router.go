package app

import (
	"github.com/gin-gonic/gin"

	mw "github.com/schedulebud/backend/internal/http/middleware"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

func wireRouter(log *logger.Logger, h Handlers, m Middleware) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(mw.CORS())
	router.Use(mw.RequestLogger(log))

	router.GET("/healthz", h.Health.HealthCheck)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", m.Auth.RequireAuth(), h.Auth.Logout)
		}

		protected := api.Group("")
		protected.Use(m.Auth.RequireAuth())
		{
			protected.POST("/import", h.ImportExport.Import)
			protected.GET("/export", h.ImportExport.Export)
			protected.GET("/export/term", h.ImportExport.ExportTermArchive)
			protected.POST("/files", h.File.Upload)
			protected.GET("/tasks", h.Planner.ListTasks)
			protected.GET("/classes", h.Planner.ListClasses)
			protected.GET("/task-types", h.Planner.ListTaskTypes)
			protected.GET("/events", h.SSE.Stream)
		}
	}

	return router
}
