package storage

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/LENAX/workflow-engine/pkg/core/engine"
	"github.com/LENAX/workflow-engine/pkg/core/workflow"
)

// Archiver 执行记录归档器（对外导出）
// 订阅引擎事件总线上的Workflow状态事件，把终态事件写入存储。
// 归档失败仅记录日志，不影响引擎执行
type Archiver struct {
	repo   RunRecordRepository
	bus    *engine.EventBus
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewArchiver 创建归档器（对外导出）
func NewArchiver(repo RunRecordRepository, bus *engine.EventBus) *Archiver {
	return &Archiver{repo: repo, bus: bus}
}

// Start 启动归档循环（对外导出）
func (a *Archiver) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	msgs, err := a.bus.Subscribe(ctx, engine.TopicWorkflowStatus)
	if err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for msg := range msgs {
			var ev engine.WorkflowStatusEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.Printf("警告: 归档事件反序列化失败: %v", err)
				msg.Ack()
				continue
			}

			if ev.Status == workflow.StatusCompleted || ev.Status == workflow.StatusFailed {
				record := &RunRecord{
					WorkflowID: ev.WorkflowID,
					Name:       ev.Name,
					Status:     string(ev.Status),
					Progress:   ev.Progress,
					FinishedAt: ev.Timestamp,
				}
				if err := a.repo.Save(ctx, record); err != nil {
					log.Printf("警告: 归档执行记录失败: %v", err)
				}
			}
			msg.Ack()
		}
	}()

	log.Println("✅ 执行记录归档器已启动")
	return nil
}

// Stop 停止归档循环并等待退出（对外导出）
func (a *Archiver) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}
