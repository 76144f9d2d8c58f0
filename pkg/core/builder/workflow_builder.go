// Package builder 将声明式Workflow定义转换为可执行的Workflow对象。
package builder

import (
	"fmt"

	"github.com/LENAX/workflow-engine/pkg/config"
	"github.com/LENAX/workflow-engine/pkg/core/task"
	"github.com/LENAX/workflow-engine/pkg/core/workflow"
)

// WorkflowBuilder Workflow构建器（对外导出）
type WorkflowBuilder struct {
	registry *task.HandlerRegistry
}

// NewWorkflowBuilder 创建Workflow构建器（对外导出）
// registry为nil时使用内置Handler注册中心
func NewWorkflowBuilder(registry *task.HandlerRegistry) *WorkflowBuilder {
	if registry == nil {
		registry = task.DefaultRegistry()
	}
	return &WorkflowBuilder{registry: registry}
}

// Registry 返回构建器使用的Handler注册中心（对外导出）
func (b *WorkflowBuilder) Registry() *task.HandlerRegistry {
	return b.registry
}

// Build 从定义构建Workflow（对外导出）
// 构建前执行全量校验（结构、依赖、循环、写冲突），校验失败不产出Workflow
func (b *WorkflowBuilder) Build(def *config.WorkflowDefinition) (*workflow.Workflow, error) {
	if def == nil {
		return nil, fmt.Errorf("Workflow定义不能为空")
	}
	if err := def.Validate(b.registry.Has); err != nil {
		return nil, err
	}

	wf := workflow.New(def.Name, def.Description)
	wf.Context = task.NewExecutionContext(def.WorkDir)
	for k, v := range def.Env {
		wf.Context.Env[k] = v
	}

	for i := range def.Tasks {
		td := &def.Tasks[i]

		work, err := b.registry.Bind(td.Handler, td.Params)
		if err != nil {
			return nil, fmt.Errorf("绑定Handler失败: Task=%s, Error=%w", td.ID, err)
		}

		priority := task.Priority(td.Priority)
		if td.Priority == "" {
			priority = task.PriorityNormal
		}

		deps := make([]string, len(td.Dependencies))
		copy(deps, td.Dependencies)
		writes := make([]string, len(td.Writes))
		copy(writes, td.Writes)

		wf.AddTask(&task.Task{
			ID:           td.ID,
			Name:         td.Name,
			Description:  td.Description,
			Category:     td.Category,
			Status:       task.StatusPending,
			Priority:     priority,
			Dependencies: deps,
			Writes:       writes,
			Cancellable:  td.Cancellable,
			Retryable:    td.Retryable,
			MaxRetries:   td.MaxRetries,
			TimeoutMs:    td.TimeoutMs,
			Work:         work,
		})
	}

	return wf, nil
}

// BuildFromFile 从YAML定义文件构建Workflow（对外导出）
func (b *WorkflowBuilder) BuildFromFile(path string) (*workflow.Workflow, error) {
	cfg, err := config.LoadWorkflowConfig(path)
	if err != nil {
		return nil, err
	}
	return b.Build(&cfg.Workflow)
}
