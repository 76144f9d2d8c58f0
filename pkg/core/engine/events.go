package engine

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/LENAX/workflow-engine/pkg/core/task"
	"github.com/LENAX/workflow-engine/pkg/core/workflow"
)

// 事件主题
const (
	TopicTaskStatus     = "task.status"     // Task状态变更事件
	TopicWorkflowStatus = "workflow.status" // Workflow状态变更事件
)

// TaskStatusEvent Task状态变更事件（对外导出）
type TaskStatusEvent struct {
	WorkflowID string      `json:"workflow_id"`
	TaskID     string      `json:"task_id"`
	TaskName   string      `json:"task_name"`
	Status     task.Status `json:"status"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
	Timestamp  time.Time   `json:"timestamp"`
}

// WorkflowStatusEvent Workflow状态变更事件（对外导出）
type WorkflowStatusEvent struct {
	WorkflowID string          `json:"workflow_id"`
	Name       string          `json:"name"`
	Status     workflow.Status `json:"status"`
	Progress   int             `json:"progress"`
	Timestamp  time.Time       `json:"timestamp"`
}

// EventBus 引擎事件总线（对外导出）
// 基于watermill的进程内pub/sub，引擎在Task/Workflow状态变更时发布事件，
// 供调用方或API层（如WebSocket推送）订阅
type EventBus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewEventBus 创建事件总线（对外导出）
func NewEventBus() *EventBus {
	logger := watermill.NewStdLogger(false, false)
	return &EventBus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger),
		logger: logger,
	}
}

// Subscribe 订阅指定主题（对外导出）
// 返回的channel在ctx取消或总线关闭时关闭
func (b *EventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close 关闭事件总线（对外导出）
func (b *EventBus) Close() error {
	return b.pubsub.Close()
}

// PublishTaskStatus 发布Task状态变更事件（对外导出）
// 发布失败仅记录日志，不影响执行流程
func (b *EventBus) PublishTaskStatus(ev *TaskStatusEvent) {
	b.publish(TopicTaskStatus, ev)
}

// PublishWorkflowStatus 发布Workflow状态变更事件（对外导出）
func (b *EventBus) PublishWorkflowStatus(ev *WorkflowStatusEvent) {
	b.publish(TopicWorkflowStatus, ev)
}

// publish 序列化并发布事件（内部方法）
func (b *EventBus) publish(topic string, ev interface{}) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("警告: 事件序列化失败: Topic=%s, Error=%v", topic, err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		log.Printf("警告: 事件发布失败: Topic=%s, Error=%v", topic, err)
	}
}
