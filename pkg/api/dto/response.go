package dto

import (
	"time"

	"github.com/LENAX/workflow-engine/pkg/core/engine"
	"github.com/LENAX/workflow-engine/pkg/core/task"
	"github.com/LENAX/workflow-engine/pkg/core/workflow"
)

// Response 统一API响应结构（对外导出）
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应（对外导出）
func NewSuccessResponse(data interface{}) *Response {
	return &Response{Code: 0, Message: "ok", Data: data}
}

// NewErrorResponse 创建错误响应（对外导出）
func NewErrorResponse(code int, message string) *Response {
	return &Response{Code: code, Message: message}
}

// RunResponse 提交执行的响应（对外导出）
type RunResponse struct {
	HandleID   string `json:"handle_id"`
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
	TasksTotal int    `json:"tasks_total"`
}

// TaskSummary Task状态摘要（对外导出）
type TaskSummary struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Category   string        `json:"category,omitempty"`
	Status     task.Status   `json:"status"`
	Priority   task.Priority `json:"priority"`
	Progress   int           `json:"progress"`
	RetryCount int           `json:"retry_count"`
	Error      string        `json:"error,omitempty"`
}

// WorkflowStatusResponse Workflow状态查询响应（对外导出）
type WorkflowStatusResponse struct {
	WorkflowID string          `json:"workflow_id"`
	Name       string          `json:"name"`
	Status     workflow.Status `json:"status"`
	Progress   int             `json:"progress"`
	Executing  bool            `json:"executing"`
	Tasks      []TaskSummary   `json:"tasks"`
}

// NewWorkflowStatusResponse 从引擎状态快照构建状态响应（对外导出）
// 快照在引擎锁内拷贝，执行期间读取不会与引擎的就地写入竞争
func NewWorkflowStatusResponse(snap *engine.WorkflowSnapshot) *WorkflowStatusResponse {
	resp := &WorkflowStatusResponse{
		WorkflowID: snap.WorkflowID,
		Name:       snap.Name,
		Status:     snap.Status,
		Progress:   snap.Progress,
		Executing:  snap.Executing,
		Tasks:      make([]TaskSummary, 0, len(snap.Tasks)),
	}
	for _, t := range snap.Tasks {
		resp.Tasks = append(resp.Tasks, TaskSummary{
			ID:         t.ID,
			Name:       t.Name,
			Category:   t.Category,
			Status:     t.Status,
			Priority:   t.Priority,
			Progress:   t.Progress,
			RetryCount: t.RetryCount,
			Error:      t.Error,
		})
	}
	return resp
}

// HistoryResponse 执行历史响应（对外导出）
type HistoryResponse struct {
	Entries []engine.HistoryEntry `json:"entries"`
	Count   int                   `json:"count"`
}

// HealthResponse 健康检查响应（对外导出）
type HealthResponse struct {
	Status    string    `json:"status"`
	Executing bool      `json:"executing"`
	Timestamp time.Time `json:"timestamp"`
}
