package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedulebud/backend/internal/data/repos"
	"github.com/schedulebud/backend/internal/http/response"
	"github.com/schedulebud/backend/internal/pkg/dbctx"
	"github.com/schedulebud/backend/internal/requestdata"
)

// PlannerHandler exposes the read side of the planner entities so
// clients can verify what an import produced.
type PlannerHandler struct {
	classRepo    repos.ClassRepo
	taskTypeRepo repos.TaskTypeRepo
	taskRepo     repos.TaskRepo
}

func NewPlannerHandler(classRepo repos.ClassRepo, taskTypeRepo repos.TaskTypeRepo, taskRepo repos.TaskRepo) *PlannerHandler {
	return &PlannerHandler{
		classRepo:    classRepo,
		taskTypeRepo: taskTypeRepo,
		taskRepo:     taskRepo,
	}
}

func (ph *PlannerHandler) ListTasks(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	tasks, err := ph.taskRepo.GetByUserID(dbctx.Context{Ctx: c.Request.Context()}, rd.UserID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "query_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"tasks": tasks})
}

func (ph *PlannerHandler) ListClasses(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	classes, err := ph.classRepo.GetByUserID(dbctx.Context{Ctx: c.Request.Context()}, rd.UserID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "query_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"classes": classes})
}

func (ph *PlannerHandler) ListTaskTypes(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	taskTypes, err := ph.taskTypeRepo.GetByUserID(dbctx.Context{Ctx: c.Request.Context()}, rd.UserID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "query_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"task_types": taskTypes})
}
