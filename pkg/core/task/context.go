package task

import (
	"context"
	"fmt"
)

// ExecutionContext 工作流共享执行上下文（对外导出）
// 所有Task的工作函数都可读写同一个ExecutionContext。
// SharedState 按约定不加锁：同一批次内并发执行的Task不得写入相同key
// （构建期通过Task.Writes声明进行冲突校验），跨批次传递数据是安全的。
type ExecutionContext struct {
	ctx context.Context // 底层context，用于超时、协作式取消

	WorkDir     string                 // 工作目录
	Env         map[string]string      // 环境变量映射
	SharedState map[string]interface{} // 自由键值共享状态
}

// ContextOverrides 单次执行的上下文覆盖项（对外导出）
// 由调用方在Run时提供，逐项覆盖Workflow自有的ExecutionContext
type ContextOverrides struct {
	WorkDir     string
	Env         map[string]string
	SharedState map[string]interface{}
}

// NewExecutionContext 创建ExecutionContext（对外导出）
func NewExecutionContext(workDir string) *ExecutionContext {
	return &ExecutionContext{
		ctx:         context.Background(),
		WorkDir:     workDir,
		Env:         make(map[string]string),
		SharedState: make(map[string]interface{}),
	}
}

// WithContext 绑定底层context.Context（内部方法，供引擎在执行期注入）
func (ec *ExecutionContext) WithContext(ctx context.Context) {
	ec.ctx = ctx
}

// Context 返回底层context.Context（对外导出）
// 工作函数应监听其Done通道以支持协作式取消
func (ec *ExecutionContext) Context() context.Context {
	if ec.ctx == nil {
		return context.Background()
	}
	return ec.ctx
}

// Done 返回取消通知通道（对外导出）
func (ec *ExecutionContext) Done() <-chan struct{} {
	return ec.Context().Done()
}

// ApplyOverrides 应用调用方提供的覆盖项（内部方法，供引擎使用）
func (ec *ExecutionContext) ApplyOverrides(ov *ContextOverrides) {
	if ov == nil {
		return
	}
	if ov.WorkDir != "" {
		ec.WorkDir = ov.WorkDir
	}
	for k, v := range ov.Env {
		ec.Env[k] = v
	}
	for k, v := range ov.SharedState {
		ec.SharedState[k] = v
	}
}

// Get 获取共享状态值（对外导出）
func (ec *ExecutionContext) Get(key string) (interface{}, bool) {
	v, ok := ec.SharedState[key]
	return v, ok
}

// Set 写入共享状态值（对外导出）
// 写入方必须是该key的唯一并发写者（见类型注释）
func (ec *ExecutionContext) Set(key string, value interface{}) {
	ec.SharedState[key] = value
}

// GetString 获取字符串类型的共享状态值（对外导出）
func (ec *ExecutionContext) GetString(key string) string {
	v, ok := ec.SharedState[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// GetInt 获取整数类型的共享状态值（对外导出）
func (ec *ExecutionContext) GetInt(key string) (int, error) {
	v, ok := ec.SharedState[key]
	if !ok {
		return 0, fmt.Errorf("共享状态 %s 不存在", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		var i int
		_, err := fmt.Sscanf(n, "%d", &i)
		return i, err
	default:
		return 0, fmt.Errorf("共享状态 %s 类型不是整数，当前类型: %T", key, v)
	}
}

// MustGet 获取共享状态值，不存在则panic（对外导出）
func (ec *ExecutionContext) MustGet(key string) interface{} {
	v, ok := ec.SharedState[key]
	if !ok {
		panic(fmt.Sprintf("必需的共享状态 %s 不存在", key))
	}
	return v
}
