// Package api 提供工作流引擎的HTTP控制面：
// 提交执行、生命周期控制、历史查询与WebSocket事件推送。
package api

import (
	"github.com/gin-gonic/gin"

	apihandler "github.com/LENAX/workflow-engine/pkg/api/handler"
	"github.com/LENAX/workflow-engine/pkg/core/builder"
	"github.com/LENAX/workflow-engine/pkg/core/engine"
)

// SetupRouter 创建并配置gin路由（对外导出）
func SetupRouter(eng *engine.Engine, b *builder.WorkflowBuilder) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	wfHandler := apihandler.NewWorkflowHandler(eng, b)
	evHandler := apihandler.NewEventsHandler(eng.Events())

	router.GET("/healthz", wfHandler.Health)
	router.GET("/ws/events", evHandler.Stream)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/workflows/run", wfHandler.Run)
		v1.GET("/workflows/current", wfHandler.Status)
		v1.POST("/workflows/current/pause", wfHandler.Pause)
		v1.POST("/workflows/current/resume", wfHandler.Resume)
		v1.POST("/workflows/current/cancel", wfHandler.Cancel)
		v1.POST("/tasks/:id/retry", wfHandler.RetryTask)
		v1.GET("/history", wfHandler.History)
		v1.DELETE("/history", wfHandler.ClearHistory)
	}

	return router
}
