// Package engine 实现依赖感知的工作流执行引擎：
// 按依赖批次驱动Task执行，批次间串行、批次内并发，
// 提供超时、线性退避重试、暂停/恢复/取消与有界执行历史。
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LENAX/workflow-engine/pkg/config"
	"github.com/LENAX/workflow-engine/pkg/core/dag"
	"github.com/LENAX/workflow-engine/pkg/core/task"
	"github.com/LENAX/workflow-engine/pkg/core/workflow"
)

// Engine 工作流执行引擎（对外导出）
// 同一引擎实例同时只允许一个Workflow处于执行中，这是引擎提供的
// 唯一互斥保证；sharedState的并发写入约束由构建期校验承担。
type Engine struct {
	mu         sync.Mutex
	cfg        *config.EngineConfig
	current    *ExecutionHandle // 当前（或最近一次）执行
	history    *History
	bus        *EventBus
	workerPool chan struct{} // 全局Worker池，限制批次内并发
}

// New 创建引擎实例（对外导出）
// cfg为nil时使用默认配置
func New(cfg *config.EngineConfig) *Engine {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	} else {
		cfg.ApplyDefaults()
	}
	return &Engine{
		cfg:        cfg,
		history:    NewHistory(cfg.HistorySize),
		bus:        NewEventBus(),
		workerPool: make(chan struct{}, cfg.MaxWorkers),
	}
}

// Run 提交Workflow执行（对外导出）
// 返回ExecutionHandle用于等待结果与生命周期控制。
// 失败场景：引擎正忙（ErrEngineBusy）、循环或缺失依赖（*dag.DependencyCycleError，
// 此时Workflow被标记为failed且没有任何Task被触碰）。
func (e *Engine) Run(wf *workflow.Workflow, overrides *task.ContextOverrides) (*ExecutionHandle, error) {
	if wf == nil {
		return nil, fmt.Errorf("Workflow不能为空")
	}

	e.mu.Lock()
	if e.current != nil && !e.current.Finished() {
		e.mu.Unlock()
		return nil, ErrEngineBusy
	}

	// 先构建批次计划：快速失败，不产生任何Task级副作用
	batches, err := dag.BuildBatches(wf.Tasks)
	if err != nil {
		wf.Status = workflow.StatusFailed
		e.history.Record(HistoryEntry{
			WorkflowID:   wf.ID,
			Timestamp:    time.Now(),
			Success:      false,
			ErrorMessage: err.Error(),
		})
		e.mu.Unlock()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &ExecutionHandle{
		ID:        uuid.NewString(),
		engine:    e,
		wf:        wf,
		ctx:       ctx,
		ctxCancel: cancel,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
	e.current = h

	wf.Status = workflow.StatusRunning
	if wf.Context == nil {
		wf.Context = task.NewExecutionContext("")
	}
	wf.Context.ApplyOverrides(overrides)
	wf.Context.WithContext(ctx)
	progress := wf.Progress
	e.mu.Unlock()

	log.Printf("🚀 [开始执行Workflow] WorkflowID=%s, Name=%s, 任务数=%d, 批次数=%d",
		wf.ID, wf.Name, len(wf.Tasks), len(batches))
	e.bus.PublishWorkflowStatus(&WorkflowStatusEvent{
		WorkflowID: wf.ID,
		Name:       wf.Name,
		Status:     workflow.StatusRunning,
		Progress:   progress,
		Timestamp:  time.Now(),
	})

	go h.runLoop(ctx, batches, 0)
	return h, nil
}

// Pause 暂停当前Workflow（对外导出）
func (e *Engine) Pause() error {
	h, err := e.activeHandle()
	if err != nil {
		return err
	}
	return h.Pause()
}

// Resume 恢复当前Workflow（对外导出）
func (e *Engine) Resume() error {
	h, err := e.activeHandle()
	if err != nil {
		return err
	}
	return h.Resume()
}

// Cancel 取消当前Workflow（对外导出）
func (e *Engine) Cancel() error {
	h, err := e.activeHandle()
	if err != nil {
		return err
	}
	return h.Cancel()
}

// RetryTask 重试指定Task（对外导出）
// 仅当Task可重试且重试次数未耗尽时生效；线性退避后重新执行，
// 并刷新Workflow的聚合进度与状态。
// 失败场景：*TaskNotFoundError、*RetryNotEligibleError、
// *RetriesExhaustedError、ErrNoActiveWorkflow。
func (e *Engine) RetryTask(taskID string) error {
	e.mu.Lock()
	h := e.current
	if h == nil {
		e.mu.Unlock()
		return ErrNoActiveWorkflow
	}

	t := h.wf.TaskByID(taskID)
	if t == nil {
		e.mu.Unlock()
		return &TaskNotFoundError{TaskID: taskID}
	}
	if !t.Retryable {
		e.mu.Unlock()
		return &RetryNotEligibleError{TaskID: taskID}
	}
	maxRetries := t.MaxRetries
	if maxRetries <= 0 {
		maxRetries = e.cfg.DefaultMaxRetries
	}
	if t.RetryCount >= maxRetries {
		e.mu.Unlock()
		return &RetriesExhaustedError{TaskID: taskID, MaxRetries: maxRetries}
	}

	t.RetryCount++
	retryCount := t.RetryCount
	t.ResetForRetry()

	// 终态后句柄的context已在收尾时释放，重试使用独立的context
	runCtx := h.ctx
	var runCancel context.CancelFunc
	if h.Finished() {
		runCtx, runCancel = context.WithCancel(context.Background())
		h.wf.Context.WithContext(runCtx)
	}
	e.mu.Unlock()

	// 线性退避：retryDelay × 当前重试次数
	delay := time.Duration(e.cfg.RetryDelayMs*retryCount) * time.Millisecond
	log.Printf("🔄 [准备重试] TaskID=%s, 重试次数=%d/%d, 延迟=%v", taskID, retryCount, maxRetries, delay)
	time.Sleep(delay)

	e.runTask(runCtx, h, t)
	if runCancel != nil {
		runCancel()
	}

	e.mu.Lock()
	h.wf.RefreshProgress()
	// 重试补齐了最后的失败Task时，失败的Workflow转为完成
	if h.wf.Status == workflow.StatusFailed && h.wf.CompletedCount() == len(h.wf.Tasks) {
		h.wf.Status = workflow.StatusCompleted
	}
	e.mu.Unlock()
	return nil
}

// IsExecuting 判断是否有Workflow正在执行（对外导出）
// 暂停中的Workflow仍视为占用引擎
func (e *Engine) IsExecuting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && !e.current.Finished()
}

// CurrentWorkflow 返回当前（或最近一次）执行的Workflow（对外导出）
// 从未执行过时返回nil。返回的是引擎正在就地修改的活跃对象，
// 执行期间读取其字段需改用Snapshot
func (e *Engine) CurrentWorkflow() *workflow.Workflow {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	return e.current.wf
}

// TaskSnapshot Task状态快照（对外导出）
type TaskSnapshot struct {
	ID         string
	Name       string
	Category   string
	Status     task.Status
	Priority   task.Priority
	Progress   int
	RetryCount int
	Error      string
}

// WorkflowSnapshot Workflow状态快照（对外导出）
// 在引擎锁内一次性拷贝，供API等外部读取方使用，
// 避免与执行期的就地写入产生数据竞争
type WorkflowSnapshot struct {
	WorkflowID string
	Name       string
	Status     workflow.Status
	Progress   int
	Executing  bool
	Tasks      []TaskSnapshot
}

// Snapshot 返回当前Workflow的状态快照（对外导出）
// 从未执行过时返回nil
func (e *Engine) Snapshot() *WorkflowSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}

	wf := e.current.wf
	snap := &WorkflowSnapshot{
		WorkflowID: wf.ID,
		Name:       wf.Name,
		Status:     wf.Status,
		Progress:   wf.Progress,
		Executing:  !e.current.Finished(),
		Tasks:      make([]TaskSnapshot, 0, len(wf.Tasks)),
	}
	for _, t := range wf.Tasks {
		ts := TaskSnapshot{
			ID:         t.ID,
			Name:       t.Name,
			Category:   t.Category,
			Status:     t.Status,
			Priority:   t.Priority,
			Progress:   t.Progress,
			RetryCount: t.RetryCount,
		}
		if t.Result != nil {
			ts.Error = t.Result.Error
		}
		snap.Tasks = append(snap.Tasks, ts)
	}
	return snap
}

// CurrentHandle 返回当前执行句柄（对外导出）
func (e *Engine) CurrentHandle() *ExecutionHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// History 返回执行历史，从旧到新（对外导出）
func (e *Engine) History() []HistoryEntry {
	return e.history.List()
}

// ClearHistory 清空执行历史（对外导出）
func (e *Engine) ClearHistory() {
	e.history.Clear()
}

// Events 返回引擎事件总线（对外导出）
func (e *Engine) Events() *EventBus {
	return e.bus
}

// Config 返回引擎配置（对外导出）
func (e *Engine) Config() *config.EngineConfig {
	return e.cfg
}

// Close 关闭引擎（对外导出）
func (e *Engine) Close() error {
	return e.bus.Close()
}

// activeHandle 获取当前句柄（内部方法）
func (e *Engine) activeHandle() (*ExecutionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil, ErrNoActiveWorkflow
	}
	return e.current, nil
}
