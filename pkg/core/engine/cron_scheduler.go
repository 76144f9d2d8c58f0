package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/LENAX/workflow-engine/pkg/core/workflow"
)

// CronScheduler 定时调度器（对外导出）
// 按cron表达式定时触发已注册Workflow的执行；引擎正忙时跳过本次触发
type CronScheduler struct {
	cron      *cron.Cron
	engine    *Engine
	workflows map[string]*workflow.Workflow // workflowID -> Workflow映射
	entries   map[string]cron.EntryID       // workflowID -> cron.EntryID映射
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewCronScheduler 创建定时调度器（对外导出）
func NewCronScheduler(eng *Engine) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron:      cron.New(cron.WithSeconds()), // 支持秒级精度
		engine:    eng,
		workflows: make(map[string]*workflow.Workflow),
		entries:   make(map[string]cron.EntryID),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// RegisterWorkflow 注册Workflow到定时调度器（对外导出）
// cronExpr非法时返回错误；重复注册同一Workflow会先解除旧的注册
func (cs *CronScheduler) RegisterWorkflow(wf *workflow.Workflow, cronExpr string) error {
	if wf == nil {
		return fmt.Errorf("Workflow不能为空")
	}
	if cronExpr == "" {
		return fmt.Errorf("cron表达式不能为空")
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if entryID, exists := cs.entries[wf.ID]; exists {
		cs.cron.Remove(entryID)
	}

	workflowID := wf.ID
	entryID, err := cs.cron.AddFunc(cronExpr, func() {
		cs.trigger(workflowID)
	})
	if err != nil {
		return fmt.Errorf("注册定时Workflow失败: WorkflowID=%s, 表达式=%s, Error=%w", wf.ID, cronExpr, err)
	}

	cs.workflows[wf.ID] = wf
	cs.entries[wf.ID] = entryID
	log.Printf("⏰ [定时Workflow已注册] WorkflowID=%s, 表达式=%s", wf.ID, cronExpr)
	return nil
}

// UnregisterWorkflow 解除Workflow的定时注册（对外导出）
func (cs *CronScheduler) UnregisterWorkflow(workflowID string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entryID, exists := cs.entries[workflowID]
	if !exists {
		return fmt.Errorf("Workflow未注册定时调度: WorkflowID=%s", workflowID)
	}
	cs.cron.Remove(entryID)
	delete(cs.entries, workflowID)
	delete(cs.workflows, workflowID)
	return nil
}

// Start 启动定时调度器（对外导出）
func (cs *CronScheduler) Start() {
	cs.cron.Start()
	log.Println("✅ 定时调度器已启动")
}

// Stop 停止定时调度器（对外导出）
// 等待正在触发的任务函数返回
func (cs *CronScheduler) Stop() {
	cs.cancel()
	stopCtx := cs.cron.Stop()
	<-stopCtx.Done()
	log.Println("✅ 定时调度器已停止")
}

// trigger 触发一次Workflow执行（内部方法）
func (cs *CronScheduler) trigger(workflowID string) {
	cs.mu.RLock()
	wf, exists := cs.workflows[workflowID]
	cs.mu.RUnlock()
	if !exists {
		return
	}

	select {
	case <-cs.ctx.Done():
		return
	default:
	}

	if cs.engine.IsExecuting() {
		log.Printf("⏭️  [跳过定时触发] 引擎正忙: WorkflowID=%s", workflowID)
		return
	}

	// 同一Workflow对象的再次执行：先重置状态
	wf.Reset()
	h, err := cs.engine.Run(wf, nil)
	if err != nil {
		log.Printf("❌ [定时触发失败] WorkflowID=%s, Error=%v", workflowID, err)
		return
	}
	h.Wait()
}
