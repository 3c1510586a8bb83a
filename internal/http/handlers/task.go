package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/autopilot-backend/internal/http/response"
	"github.com/yungbote/autopilot-backend/internal/jobs/runtime"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type TaskRegistry interface {
	List() []runtime.TaskInfo
	Cancel(id string) (runtime.TaskInfo, error)
}

type TaskHandler struct {
	log   *logger.Logger
	tasks TaskRegistry
}

func NewTaskHandler(log *logger.Logger, tasks TaskRegistry) *TaskHandler {
	return &TaskHandler{log: log.With("handler", "TaskHandler"), tasks: tasks}
}

// GET /api/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	response.RespondOK(c, gin.H{"tasks": h.tasks.List()})
}

// POST /api/tasks/:id/cancel
func (h *TaskHandler) CancelTask(c *gin.Context) {
	info, err := h.tasks.Cancel(c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	h.log.Info("Task cancel requested", "task_id", info.ID, "key", info.Key, "state", info.State)
	response.RespondOK(c, gin.H{"task": info})
}
