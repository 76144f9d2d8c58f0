package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LENAX/workflow-engine/pkg/core/dag"
	"github.com/LENAX/workflow-engine/pkg/core/task"
	"github.com/LENAX/workflow-engine/pkg/core/workflow"
)

// ExecutionResult 一次Workflow执行的结果（对外导出）
// 整体失败时仍携带TasksCompleted/TasksTotal，便于调用方报告部分进度
type ExecutionResult struct {
	Success        bool   `json:"success"`
	DurationMs     int64  `json:"duration_ms"`
	TasksCompleted int    `json:"tasks_completed"`
	TasksTotal     int    `json:"tasks_total"`
	Error          string `json:"error,omitempty"`
}

// ExecutionHandle 一次Workflow执行的句柄（对外导出）
// 由Engine.Run返回，用于等待结果与生命周期控制。引擎同时只持有
// 一个活跃句柄，但调用方可自行保留多个句柄以追踪各自的执行。
type ExecutionHandle struct {
	ID string

	engine    *Engine
	wf        *workflow.Workflow
	ctx       context.Context
	ctxCancel context.CancelFunc
	startTime time.Time

	done       chan struct{}
	result     *ExecutionResult
	finishOnce sync.Once

	// 以下字段由engine.mu保护
	cancelled  bool
	generation int // 执行循环代数：Resume递增，旧循环据此退出
}

// Wait 阻塞等待执行结束并返回结果（对外导出）
// 暂停中的执行会一直等待，直到恢复后进入终态
func (h *ExecutionHandle) Wait() *ExecutionResult {
	<-h.done
	return h.result
}

// Finished 判断执行是否已进入终态（对外导出）
func (h *ExecutionHandle) Finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done 返回执行结束通知通道（对外导出）
func (h *ExecutionHandle) Done() <-chan struct{} {
	return h.done
}

// Result 返回执行结果，未结束时返回nil（对外导出）
func (h *ExecutionHandle) Result() *ExecutionResult {
	if !h.Finished() {
		return nil
	}
	return h.result
}

// Workflow 返回句柄关联的Workflow（对外导出）
func (h *ExecutionHandle) Workflow() *workflow.Workflow {
	return h.wf
}

// Status 返回Workflow当前状态（对外导出）
func (h *ExecutionHandle) Status() workflow.Status {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	return h.wf.Status
}

// Pause 暂停执行（对外导出）
// 仅running状态可暂停；进行中的Task回退为pending，其工作函数可能
// 仍在运行（软取消语义），迟到的完成结果会被丢弃
func (h *ExecutionHandle) Pause() error {
	e := h.engine

	e.mu.Lock()
	if h.wf.Status != workflow.StatusRunning {
		status := h.wf.Status
		e.mu.Unlock()
		return fmt.Errorf("Workflow %s 当前状态为 %s，无法暂停（仅running状态可暂停）", h.wf.ID, status)
	}
	h.wf.Status = workflow.StatusPaused
	for _, t := range h.wf.Tasks {
		if t.Status == task.StatusInProgress {
			t.Status = task.StatusPending
			t.Progress = 0
			t.StartTime = time.Time{}
			t.Result = nil
		}
	}
	progress := h.wf.Progress
	e.mu.Unlock()

	log.Printf("⏸️  [Workflow已暂停] WorkflowID=%s", h.wf.ID)
	e.bus.PublishWorkflowStatus(&WorkflowStatusEvent{
		WorkflowID: h.wf.ID,
		Name:       h.wf.Name,
		Status:     workflow.StatusPaused,
		Progress:   progress,
		Timestamp:  time.Now(),
	})
	return nil
}

// Resume 恢复执行（对外导出）
// 仅paused状态可恢复；批次计划基于全量任务列表重新计算，
// 已完成的Task被预先标记为依赖已满足并排除在批次之外，不会重复执行
func (h *ExecutionHandle) Resume() error {
	e := h.engine

	e.mu.Lock()
	if h.wf.Status != workflow.StatusPaused {
		status := h.wf.Status
		e.mu.Unlock()
		return fmt.Errorf("Workflow %s 当前状态为 %s，无法恢复（仅paused状态可恢复）", h.wf.ID, status)
	}

	done := make(map[string]bool)
	for _, t := range h.wf.Tasks {
		if t.Status == task.StatusCompleted {
			done[t.ID] = true
		}
	}
	batches, err := dag.BuildBatchesExcluding(h.wf.Tasks, done)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	h.wf.Status = workflow.StatusRunning
	h.generation++
	gen := h.generation
	ctx := h.ctx
	progress := h.wf.Progress
	e.mu.Unlock()

	log.Printf("▶️  [Workflow已恢复] WorkflowID=%s, 剩余批次数=%d", h.wf.ID, len(batches))
	e.bus.PublishWorkflowStatus(&WorkflowStatusEvent{
		WorkflowID: h.wf.ID,
		Name:       h.wf.Name,
		Status:     workflow.StatusRunning,
		Progress:   progress,
		Timestamp:  time.Now(),
	})

	go h.runLoop(ctx, batches, gen)
	return nil
}

// Cancel 取消执行（对外导出）
// running或paused状态可取消；Workflow转为failed，未终态的Task
// 变为cancelled（可取消）或failed（不可取消）。进行中的工作函数
// 不会被强制终止，取消仅阻止后续Task启动（协作式取消通过
// ExecutionContext.Context()通知）
func (h *ExecutionHandle) Cancel() error {
	e := h.engine

	e.mu.Lock()
	status := h.wf.Status
	if status != workflow.StatusRunning && status != workflow.StatusPaused {
		e.mu.Unlock()
		return fmt.Errorf("Workflow %s 当前状态为 %s，无法取消（仅running/paused状态可取消）", h.wf.ID, status)
	}
	h.cancelled = true
	h.wf.Status = workflow.StatusFailed
	for _, t := range h.wf.Tasks {
		if t.Status == task.StatusPending || t.Status == task.StatusInProgress {
			if t.Cancellable {
				t.Status = task.StatusCancelled
			} else {
				t.Status = task.StatusFailed
			}
			t.Result = &task.Result{Success: false, Error: "任务已取消"}
		}
	}
	wasPaused := status == workflow.StatusPaused
	e.mu.Unlock()

	// 通知协作式取消
	h.ctxCancel()
	log.Printf("🛑 [Workflow已取消] WorkflowID=%s", h.wf.ID)

	// 暂停态没有活跃的执行循环，由取消方收尾
	if wasPaused {
		h.finalize()
	}
	return nil
}

// runLoop 批次执行循环（内部方法）
// 批次间串行；批次内Task并发启动并整体等待。gen用于识别过期循环：
// Resume会启动新一代循环，旧循环在批次边界发现代数不匹配后直接退出
func (h *ExecutionHandle) runLoop(ctx context.Context, batches [][]*task.Task, gen int) {
	e := h.engine

	for _, batch := range batches {
		e.mu.Lock()
		if gen != h.generation {
			e.mu.Unlock()
			return
		}
		status := h.wf.Status
		e.mu.Unlock()

		if status == workflow.StatusPaused {
			// 挂起执行循环，等待Resume启动新一代循环
			return
		}
		if status != workflow.StatusRunning {
			// 已取消
			break
		}

		var wg sync.WaitGroup
		for _, t := range batch {
			if t.IsTerminal() {
				continue
			}
			wg.Add(1)
			go func(t *task.Task) {
				defer wg.Done()
				e.runTask(ctx, h, t)
			}(t)
		}
		wg.Wait()
	}

	e.mu.Lock()
	if gen != h.generation {
		e.mu.Unlock()
		return
	}
	if h.wf.Status == workflow.StatusPaused {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	h.finalize()
}

// finalize 收尾一次执行：聚合结果、记录历史、发布事件（内部方法）
func (h *ExecutionHandle) finalize() {
	h.finishOnce.Do(func() {
		e := h.engine

		e.mu.Lock()
		wf := h.wf
		total := len(wf.Tasks)
		completed := wf.CompletedCount()
		wf.RefreshProgress()

		var errMsg string
		switch {
		case h.cancelled:
			wf.Status = workflow.StatusFailed
			errMsg = "Workflow已被取消"
		case completed == total:
			wf.Status = workflow.StatusCompleted
		default:
			wf.Status = workflow.StatusFailed
			errMsg = fmt.Sprintf("存在未完成的Task: %d/%d 完成", completed, total)
		}

		duration := time.Since(h.startTime).Milliseconds()
		h.result = &ExecutionResult{
			Success:        wf.Status == workflow.StatusCompleted,
			DurationMs:     duration,
			TasksCompleted: completed,
			TasksTotal:     total,
			Error:          errMsg,
		}
		finalStatus := wf.Status
		progress := wf.Progress
		e.mu.Unlock()

		e.history.Record(HistoryEntry{
			WorkflowID:   wf.ID,
			Timestamp:    time.Now(),
			Success:      h.result.Success,
			DurationMs:   duration,
			ErrorMessage: errMsg,
		})
		e.bus.PublishWorkflowStatus(&WorkflowStatusEvent{
			WorkflowID: wf.ID,
			Name:       wf.Name,
			Status:     finalStatus,
			Progress:   progress,
			Timestamp:  time.Now(),
		})

		if h.result.Success {
			log.Printf("✅ [Workflow执行完成] WorkflowID=%s, 耗时=%dms, 完成=%d/%d",
				wf.ID, duration, completed, total)
		} else {
			log.Printf("❌ [Workflow执行失败] WorkflowID=%s, 耗时=%dms, 完成=%d/%d, 原因=%s",
				wf.ID, duration, completed, total, errMsg)
		}

		// 释放本次执行的context，正常结束时也不遗留取消资源
		h.ctxCancel()
		close(h.done)
	})
}
