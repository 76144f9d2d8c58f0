package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/LENAX/workflow-engine/pkg/api/dto"
	"github.com/LENAX/workflow-engine/pkg/config"
	"github.com/LENAX/workflow-engine/pkg/core/builder"
	"github.com/LENAX/workflow-engine/pkg/core/dag"
	"github.com/LENAX/workflow-engine/pkg/core/engine"
)

// WorkflowHandler Workflow API处理器（对外导出）
type WorkflowHandler struct {
	engine  *engine.Engine
	builder *builder.WorkflowBuilder
}

// NewWorkflowHandler 创建WorkflowHandler（对外导出）
func NewWorkflowHandler(eng *engine.Engine, b *builder.WorkflowBuilder) *WorkflowHandler {
	return &WorkflowHandler{engine: eng, builder: b}
}

// Run 提交Workflow执行
// POST /api/v1/workflows/run （请求体为YAML格式的Workflow定义）
func (h *WorkflowHandler) Run(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("读取请求体失败: %v", err)))
		return
	}

	var cfg config.WorkflowConfig
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("解析Workflow定义失败: %v", err)))
		return
	}

	wf, err := h.builder.Build(&cfg.Workflow)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, err.Error()))
		return
	}

	handle, err := h.engine.Run(wf, nil)
	if err != nil {
		var cycleErr *dag.DependencyCycleError
		switch {
		case errors.Is(err, engine.ErrEngineBusy):
			c.JSON(http.StatusConflict, dto.NewErrorResponse(409, err.Error()))
		case errors.As(err, &cycleErr):
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, err.Error()))
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(&dto.RunResponse{
		HandleID:   handle.ID,
		WorkflowID: wf.ID,
		Name:       wf.Name,
		TasksTotal: len(wf.Tasks),
	}))
}

// Status 查询当前Workflow状态
// GET /api/v1/workflows/current
func (h *WorkflowHandler) Status(c *gin.Context) {
	snap := h.engine.Snapshot()
	if snap == nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, engine.ErrNoActiveWorkflow.Error()))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewWorkflowStatusResponse(snap)))
}

// Pause 暂停当前Workflow
// POST /api/v1/workflows/current/pause
func (h *WorkflowHandler) Pause(c *gin.Context) {
	h.lifecycle(c, h.engine.Pause)
}

// Resume 恢复当前Workflow
// POST /api/v1/workflows/current/resume
func (h *WorkflowHandler) Resume(c *gin.Context) {
	h.lifecycle(c, h.engine.Resume)
}

// Cancel 取消当前Workflow
// POST /api/v1/workflows/current/cancel
func (h *WorkflowHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.engine.Cancel)
}

// lifecycle 生命周期操作的公共处理（内部方法）
func (h *WorkflowHandler) lifecycle(c *gin.Context, op func() error) {
	if err := op(); err != nil {
		if errors.Is(err, engine.ErrNoActiveWorkflow) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, err.Error()))
			return
		}
		c.JSON(http.StatusConflict, dto.NewErrorResponse(409, err.Error()))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(nil))
}

// RetryTask 重试指定Task
// POST /api/v1/tasks/:id/retry
func (h *WorkflowHandler) RetryTask(c *gin.Context) {
	taskID := c.Param("id")
	if err := h.engine.RetryTask(taskID); err != nil {
		var notFound *engine.TaskNotFoundError
		var notEligible *engine.RetryNotEligibleError
		var exhausted *engine.RetriesExhaustedError
		switch {
		case errors.Is(err, engine.ErrNoActiveWorkflow), errors.As(err, &notFound):
			c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, err.Error()))
		case errors.As(err, &notEligible), errors.As(err, &exhausted):
			c.JSON(http.StatusConflict, dto.NewErrorResponse(409, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(nil))
}

// History 查询执行历史
// GET /api/v1/history
func (h *WorkflowHandler) History(c *gin.Context) {
	entries := h.engine.History()
	c.JSON(http.StatusOK, dto.NewSuccessResponse(&dto.HistoryResponse{
		Entries: entries,
		Count:   len(entries),
	}))
}

// ClearHistory 清空执行历史
// DELETE /api/v1/history
func (h *WorkflowHandler) ClearHistory(c *gin.Context) {
	h.engine.ClearHistory()
	c.JSON(http.StatusOK, dto.NewSuccessResponse(nil))
}

// Health 健康检查
// GET /healthz
func (h *WorkflowHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, &dto.HealthResponse{
		Status:    "ok",
		Executing: h.engine.IsExecuting(),
		Timestamp: time.Now(),
	})
}
