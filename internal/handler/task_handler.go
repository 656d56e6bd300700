package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskmanager/internal/service/task"
	"taskmanager/pkg/logger"
)

type TaskHandler struct {
	tasks  *task.Service
	logger *zap.Logger
}

func NewTaskHandler(tasks *task.Service, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// ListTasks handles GET /api/tasks?q&status&prioridade&sort
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	priority := c.Query("prioridade")
	if priority == "" {
		priority = c.Query("priority")
	}
	query := task.ListQuery{
		Q:        c.Query("q"),
		Status:   c.Query("status"),
		Priority: priority,
		Sort:     c.Query("sort"),
	}

	items, err := h.tasks.List(c.Request.Context(), userID, query)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Debug("ListTasks: success",
		zap.String("user_id", userID.String()),
		zap.Int("task_count", len(items)),
	)
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// CreateTask handles POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	var in task.Input
	if err := bindJSON(c, &in); err != nil {
		respondError(c, h.logger, err)
		return
	}

	item, err := h.tasks.Create(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// GetTask handles GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	item, err := h.tasks.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// UpdateTask handles PUT /api/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	var in task.Input
	if err := bindJSON(c, &in); err != nil {
		respondError(c, h.logger, err)
		return
	}

	item, err := h.tasks.Update(c.Request.Context(), userID, c.Param("id"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
