package config

import (
	"fmt"
	"strings"

	"github.com/LENAX/workflow-engine/pkg/core/dag"
	"github.com/LENAX/workflow-engine/pkg/core/task"
)

// ValidationError Workflow定义校验错误（对外导出）
// 聚合全部校验问题，一次性报告
type ValidationError struct {
	Issues []string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	return fmt.Sprintf("Workflow定义校验失败: %s", strings.Join(e.Issues, "; "))
}

// Validate 校验Workflow定义（对外导出）
// handlerExists: 判断Handler名称是否已注册的回调，为nil时跳过Handler检查
// 校验项：任务非空、ID/Handler必填、ID唯一、优先级取值、依赖存在且不自引用、
// 循环依赖、同批次共享状态写冲突
func (w *WorkflowDefinition) Validate(handlerExists func(name string) bool) error {
	issues := make([]string, 0)

	if w.Name == "" {
		issues = append(issues, "workflow.name 不能为空")
	}
	if len(w.Tasks) == 0 {
		issues = append(issues, "workflow.tasks 不能为空")
	}

	seen := make(map[string]bool, len(w.Tasks))
	for i := range w.Tasks {
		t := &w.Tasks[i]
		if t.ID == "" {
			issues = append(issues, fmt.Sprintf("第%d个Task缺少id", i+1))
			continue
		}
		if seen[t.ID] {
			issues = append(issues, fmt.Sprintf("Task ID重复: %s", t.ID))
		}
		seen[t.ID] = true

		if t.Handler == "" {
			issues = append(issues, fmt.Sprintf("Task %s 缺少handler", t.ID))
		} else if handlerExists != nil && !handlerExists(t.Handler) {
			issues = append(issues, fmt.Sprintf("Task %s 引用了未注册的Handler: %s", t.ID, t.Handler))
		}

		if t.Priority != "" && !task.ValidPriority(task.Priority(t.Priority)) {
			issues = append(issues, fmt.Sprintf("Task %s 优先级取值非法: %s", t.ID, t.Priority))
		}

		for _, dep := range t.Dependencies {
			if dep == t.ID {
				issues = append(issues, fmt.Sprintf("Task %s 依赖了自身", t.ID))
			}
		}
	}

	// 依赖存在性检查
	for i := range w.Tasks {
		t := &w.Tasks[i]
		for _, dep := range t.Dependencies {
			if dep != t.ID && !seen[dep] {
				issues = append(issues, fmt.Sprintf("Task %s 依赖了不存在的Task: %s", t.ID, dep))
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}

	// 结构合法后做批次级检查：循环依赖与同批次写冲突
	skeleton := make([]*task.Task, 0, len(w.Tasks))
	for i := range w.Tasks {
		t := &w.Tasks[i]
		skeleton = append(skeleton, &task.Task{
			ID:           t.ID,
			Dependencies: t.Dependencies,
			Writes:       t.Writes,
		})
	}

	batches, err := dag.BuildBatches(skeleton)
	if err != nil {
		return err
	}

	// 同一批次内可能并发执行的Task不得声明相同的写入key，
	// 否则运行时对sharedState的写入会产生竞态（引擎不加锁，按契约拒绝）
	for batchIdx, batch := range batches {
		writers := make(map[string]string) // key -> 首个声明写入的Task ID
		for _, t := range batch {
			for _, key := range t.Writes {
				if firstID, ok := writers[key]; ok {
					issues = append(issues, fmt.Sprintf(
						"共享状态写冲突: Task %s 与 Task %s 在第%d批次内都声明写入 %s",
						firstID, t.ID, batchIdx+1, key))
				} else {
					writers[key] = t.ID
				}
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
