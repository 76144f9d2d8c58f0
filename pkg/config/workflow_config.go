package config

// WorkflowConfig Workflow定义文件（对外导出）
// 以声明方式描述一个Workflow：任务、依赖、重试/超时策略与共享状态写声明
type WorkflowConfig struct {
	Workflow WorkflowDefinition `yaml:"workflow"`
}

// WorkflowDefinition Workflow定义
type WorkflowDefinition struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	WorkDir     string           `yaml:"work_dir"`
	Env         map[string]string `yaml:"env"`
	CronExpr    string           `yaml:"cron_expr"` // 可选：定时触发表达式（秒级精度）
	Tasks       []TaskDefinition `yaml:"tasks"`
}

// TaskDefinition Task定义
type TaskDefinition struct {
	ID           string                 `yaml:"id"`
	Name         string                 `yaml:"name"`
	Description  string                 `yaml:"description"`
	Category     string                 `yaml:"category"`
	Priority     string                 `yaml:"priority"` // low/normal/high/critical，默认normal
	Handler      string                 `yaml:"handler"`  // 已注册的Handler名称
	Params       map[string]interface{} `yaml:"params"`
	Dependencies []string               `yaml:"dependencies"`
	Writes       []string               `yaml:"writes"` // 声明写入的sharedState key
	Cancellable  bool                   `yaml:"cancellable"`
	Retryable    bool                   `yaml:"retryable"`
	MaxRetries   int                    `yaml:"max_retries"`
	TimeoutMs    int                    `yaml:"timeout_ms"`
}

// TaskByID 根据ID获取Task定义（对外导出）
func (w *WorkflowDefinition) TaskByID(id string) *TaskDefinition {
	for i := range w.Tasks {
		if w.Tasks[i].ID == id {
			return &w.Tasks[i]
		}
	}
	return nil
}
