package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/LENAX/workflow-engine/pkg/core/engine"
)

// EventsHandler WebSocket事件推送处理器（对外导出）
// 将引擎事件总线上的Task/Workflow状态事件实时推送给WebSocket客户端
type EventsHandler struct {
	bus      *engine.EventBus
	upgrader websocket.Upgrader
}

// NewEventsHandler 创建EventsHandler（对外导出）
func NewEventsHandler(bus *engine.EventBus) *EventsHandler {
	return &EventsHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Stream 建立WebSocket连接并推送事件
// GET /ws/events
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("警告: WebSocket升级失败: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	taskMsgs, err := h.bus.Subscribe(ctx, engine.TopicTaskStatus)
	if err != nil {
		log.Printf("警告: 订阅Task事件失败: %v", err)
		return
	}
	wfMsgs, err := h.bus.Subscribe(ctx, engine.TopicWorkflowStatus)
	if err != nil {
		log.Printf("警告: 订阅Workflow事件失败: %v", err)
		return
	}

	// 消费客户端消息以探测连接关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-taskMsgs:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg.Payload); err != nil {
				msg.Nack()
				return
			}
			msg.Ack()
		case msg, ok := <-wfMsgs:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg.Payload); err != nil {
				msg.Nack()
				return
			}
			msg.Ack()
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}
