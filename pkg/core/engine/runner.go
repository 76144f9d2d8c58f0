package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/LENAX/workflow-engine/pkg/core/task"
	"github.com/LENAX/workflow-engine/pkg/core/workflow"
)

// runTask 执行单个Task（内部方法）
// 状态迁移：pending -> in_progress -> completed/failed。
// 失败只影响该Task自身的状态与结果，不会中止同批次的其他Task。
// ctx由调用方传入：执行循环使用本次执行的context，
// 终态后的重试使用独立的context（见RetryTask）
func (e *Engine) runTask(ctx context.Context, h *ExecutionHandle, t *task.Task) {
	// 全局Worker池限流
	select {
	case e.workerPool <- struct{}{}:
		defer func() { <-e.workerPool }()
	case <-ctx.Done():
		return
	}

	e.mu.Lock()
	if t.Status != task.StatusPending || h.wf.Status == workflow.StatusPaused || h.cancelled {
		e.mu.Unlock()
		return
	}
	t.Status = task.StatusInProgress
	t.StartTime = time.Now()
	t.Progress = 0
	t.Result = nil
	t.Attempt++
	attempt := t.Attempt
	e.mu.Unlock()

	log.Printf("📞 [开始执行Task] TaskID=%s, TaskName=%s", t.ID, t.Name)
	e.bus.PublishTaskStatus(&TaskStatusEvent{
		WorkflowID: h.wf.ID,
		TaskID:     t.ID,
		TaskName:   t.Name,
		Status:     task.StatusInProgress,
		Timestamp:  time.Now(),
	})

	timeout := time.Duration(t.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(e.cfg.DefaultTimeoutMs) * time.Millisecond
	}

	startTime := time.Now()
	err := e.executeWithTimeout(ctx, t, h.wf.Context, timeout)
	duration := time.Since(startTime).Milliseconds()

	e.mu.Lock()
	if t.Status != task.StatusInProgress || t.Attempt != attempt {
		// 暂停/取消抢先修改了状态，或已进入新的尝试：丢弃本次迟到结果
		e.mu.Unlock()
		return
	}
	t.EndTime = time.Now()
	var errMsg string
	if err == nil {
		t.Status = task.StatusCompleted
		t.Progress = 100
		t.Result = &task.Result{Success: true}
	} else {
		t.Status = task.StatusFailed
		errMsg = err.Error()
		t.Result = &task.Result{Success: false, Error: errMsg}
	}
	h.wf.RefreshProgress()
	finalStatus := t.Status
	e.mu.Unlock()

	if err == nil {
		log.Printf("✅ [Task执行成功] TaskID=%s, TaskName=%s, 耗时=%dms", t.ID, t.Name, duration)
	} else {
		log.Printf("❌ [Task执行失败] TaskID=%s, TaskName=%s, 耗时=%dms, 错误=%v", t.ID, t.Name, duration, err)
	}
	e.bus.PublishTaskStatus(&TaskStatusEvent{
		WorkflowID: h.wf.ID,
		TaskID:     t.ID,
		TaskName:   t.Name,
		Status:     finalStatus,
		Error:      errMsg,
		DurationMs: duration,
		Timestamp:  time.Now(),
	})
}

// executeWithTimeout 在超时竞争下执行工作函数（内部方法）
// 超时是软性的：计时器先到时本次执行记为超时失败，但底层工作函数
// 不会被强制终止，它可能继续运行并写共享状态；需要硬停止的工作函数
// 应监听ExecutionContext.Context()的取消通知
func (e *Engine) executeWithTimeout(ctx context.Context, t *task.Task, execCtx *task.ExecutionContext, timeout time.Duration) error {
	if t.Work == nil {
		return &TaskExecutionError{TaskID: t.ID, Err: fmt.Errorf("工作函数未注入")}
	}

	resultCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- fmt.Errorf("工作函数panic: %v", r)
			}
		}()
		resultCh <- t.Work(execCtx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-resultCh:
		if err != nil {
			return &TaskExecutionError{TaskID: t.ID, Err: err}
		}
		return nil
	case <-timer.C:
		return &TaskTimeoutError{TaskID: t.ID, Timeout: timeout}
	case <-ctx.Done():
		return &TaskExecutionError{TaskID: t.ID, Err: ctx.Err()}
	}
}
