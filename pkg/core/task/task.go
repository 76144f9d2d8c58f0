package task

import (
	"time"

	"github.com/google/uuid"
)

// Status Task状态（对外导出）
type Status string

const (
	StatusPending    Status = "pending"     // 等待执行
	StatusInProgress Status = "in_progress" // 执行中
	StatusCompleted  Status = "completed"   // 执行成功
	StatusFailed     Status = "failed"      // 执行失败
	StatusCancelled  Status = "cancelled"   // 已取消
)

// Priority Task优先级（对外导出）
// 注意：优先级目前仅作记录，不影响同一批次内的调度顺序
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ValidPriority 校验优先级取值是否合法（对外导出）
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// WorkFunc Task工作函数类型（对外导出）
// 由调用方注入，引擎不感知其内部逻辑，仅在外层包裹超时与重试
type WorkFunc func(ctx *ExecutionContext) error

// Result Task执行结果（对外导出）
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Task 工作流中的单个工作单元（对外导出）
type Task struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"` // 自由分类标签
	Status       Status   `json:"status"`
	Priority     Priority `json:"priority"`
	Dependencies []string `json:"dependencies"` // 前置Task ID列表
	Progress     int      `json:"progress"`     // 0-100
	Cancellable  bool     `json:"cancellable"`
	Retryable    bool     `json:"retryable"`
	MaxRetries   int      `json:"max_retries"` // 0表示使用引擎默认值
	RetryCount   int      `json:"retry_count"`
	TimeoutMs    int      `json:"timeout_ms"` // 0表示使用引擎默认超时
	Writes       []string `json:"writes"`     // 声明要写入的sharedState key（用于构建期冲突校验）

	StartTime time.Time `json:"start_time,omitzero"`
	EndTime   time.Time `json:"end_time,omitzero"`
	Result    *Result   `json:"result,omitempty"`

	// Attempt 执行尝试序号，由引擎维护。软超时/暂停后底层工作函数
	// 可能仍在运行，引擎据此丢弃过期尝试的迟到结果
	Attempt int `json:"-"`

	Work WorkFunc `json:"-"`
}

// New 创建Task实例（对外导出）
func New(name, desc string, work WorkFunc) *Task {
	return &Task{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  desc,
		Status:       StatusPending,
		Priority:     PriorityNormal,
		Dependencies: make([]string, 0),
		Work:         work,
	}
}

// DependsOn 添加前置依赖（对外导出）
func (t *Task) DependsOn(ids ...string) *Task {
	t.Dependencies = append(t.Dependencies, ids...)
	return t
}

// IsTerminal 判断Task是否已进入终态（对外导出）
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ResetForRetry 重置Task状态以便重试（对外导出）
// 仅重置执行痕迹，不改变重试计数（计数由引擎维护）
func (t *Task) ResetForRetry() {
	t.Status = StatusPending
	t.Progress = 0
	t.Result = nil
	t.StartTime = time.Time{}
	t.EndTime = time.Time{}
}
