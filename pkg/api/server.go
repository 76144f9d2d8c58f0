package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/LENAX/workflow-engine/pkg/core/builder"
	"github.com/LENAX/workflow-engine/pkg/core/engine"
)

// Server HTTP API服务器（对外导出）
type Server struct {
	httpServer *http.Server
}

// NewServer 创建HTTP API服务器（对外导出）
func NewServer(eng *engine.Engine, b *builder.WorkflowBuilder, port int) *Server {
	router := SetupRouter(eng, b)
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // WebSocket长连接不设写超时
		},
	}
}

// Start 启动服务器（对外导出）
// 阻塞直到服务器关闭
func (s *Server) Start() error {
	log.Printf("✅ HTTP服务已启动: %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP服务启动失败: %w", err)
	}
	return nil
}

// Shutdown 优雅关闭服务器（对外导出）
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("正在关闭HTTP服务...")
	return s.httpServer.Shutdown(ctx)
}
