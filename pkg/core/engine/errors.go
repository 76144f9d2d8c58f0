package engine

import (
	"errors"
	"fmt"
	"time"
)

// 引擎级错误：同步抛给调用方，不产生任何部分副作用
var (
	// ErrEngineBusy 引擎正忙（同一引擎实例同时只允许一个Workflow执行）
	ErrEngineBusy = errors.New("引擎正忙：已有Workflow正在执行")
	// ErrNoActiveWorkflow 没有活跃的Workflow（生命周期/重试操作在错误状态下被调用）
	ErrNoActiveWorkflow = errors.New("没有活跃的Workflow")
)

// TaskTimeoutError Task执行超时错误（对外导出）
// 仅影响单个Task：超时后该Task被记为失败，底层工作函数不会被强制终止
type TaskTimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("任务执行超时: TaskID=%s, 超时时间=%v", e.TaskID, e.Timeout)
}

// TaskExecutionError Task执行失败错误（对外导出）
// 记录在task.Result中，不会中止同批次的其他Task
type TaskExecutionError struct {
	TaskID string
	Err    error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("任务执行失败: TaskID=%s, 错误=%v", e.TaskID, e.Err)
}

// Unwrap 支持errors.Is/As
func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}

// TaskNotFoundError Task不存在错误（对外导出）
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("Task不存在: TaskID=%s", e.TaskID)
}

// RetryNotEligibleError Task不可重试错误（对外导出）
type RetryNotEligibleError struct {
	TaskID string
}

func (e *RetryNotEligibleError) Error() string {
	return fmt.Sprintf("Task不可重试: TaskID=%s", e.TaskID)
}

// RetriesExhaustedError 重试次数已耗尽错误（对外导出）
type RetriesExhaustedError struct {
	TaskID     string
	MaxRetries int
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("重试次数已耗尽: TaskID=%s, 最大重试次数=%d", e.TaskID, e.MaxRetries)
}
