package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/LENAX/workflow-engine/pkg/core/task"
)

// Status Workflow状态（对外导出）
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Workflow 工作流聚合根（对外导出）
// 由调用方以声明方式创建；引擎在执行期就地修改Task与Workflow的状态字段。
// 一个Workflow持有一个ExecutionContext，生命周期与Workflow一致。
type Workflow struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Tasks       []*task.Task           `json:"tasks"`
	Context     *task.ExecutionContext `json:"-"`
	Status      Status                 `json:"status"`
	Progress    int                    `json:"progress"` // 0-100，已完成Task的百分比
	CreateTime  time.Time              `json:"create_time"`
}

// New 创建Workflow实例（对外导出）
func New(name, desc string) *Workflow {
	return &Workflow{
		ID:          uuid.NewString(),
		Name:        name,
		Description: desc,
		Tasks:       make([]*task.Task, 0),
		Context:     task.NewExecutionContext(""),
		Status:      StatusIdle,
		CreateTime:  time.Now(),
	}
}

// AddTask 添加Task（对外导出）
func (w *Workflow) AddTask(t *task.Task) *Workflow {
	w.Tasks = append(w.Tasks, t)
	return w
}

// TaskByID 按ID查找Task（对外导出）
func (w *Workflow) TaskByID(id string) *task.Task {
	for _, t := range w.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// CompletedCount 统计已完成Task数量（对外导出）
func (w *Workflow) CompletedCount() int {
	n := 0
	for _, t := range w.Tasks {
		if t.Status == task.StatusCompleted {
			n++
		}
	}
	return n
}

// RefreshProgress 重新计算派生进度（对外导出）
// 进度 = 已完成Task数 / 总Task数 × 100；空Workflow视为100
func (w *Workflow) RefreshProgress() {
	if len(w.Tasks) == 0 {
		w.Progress = 100
		return
	}
	w.Progress = w.CompletedCount() * 100 / len(w.Tasks)
}

// Reset 重置Workflow及全部Task到初始状态（对外导出）
// 用于同一Workflow对象的再次执行（如定时触发）
func (w *Workflow) Reset() {
	w.Status = StatusIdle
	w.Progress = 0
	for _, t := range w.Tasks {
		t.Status = task.StatusPending
		t.Progress = 0
		t.Result = nil
		t.RetryCount = 0
		t.StartTime = time.Time{}
		t.EndTime = time.Time{}
	}
}

// IsTerminal 判断Workflow是否已进入终态（对外导出）
func (w *Workflow) IsTerminal() bool {
	return w.Status == StatusCompleted || w.Status == StatusFailed
}
