package task

import (
	"fmt"
	"sort"
	"sync"
)

// Handler 具名工作函数（对外导出）
// 与WorkFunc的区别：Handler由注册中心按名称管理，并在构建Workflow时
// 绑定声明式参数，绑定结果即Task的WorkFunc
type Handler func(ctx *ExecutionContext, params map[string]interface{}) error

// HandlerRegistry Handler注册中心（对外导出）
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry 创建空的注册中心（对外导出）
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]Handler),
	}
}

// Register 注册Handler（对外导出）
// 名称重复时返回错误
func (r *HandlerRegistry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("Handler名称不能为空")
	}
	if h == nil {
		return fmt.Errorf("Handler不能为空: %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("Handler已注册: %s", name)
	}
	r.handlers[name] = h
	return nil
}

// Get 按名称获取Handler，不存在返回nil（对外导出）
func (r *HandlerRegistry) Get(name string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}

// Has 判断Handler是否已注册（对外导出）
func (r *HandlerRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[name]
	return exists
}

// Names 返回全部已注册的Handler名称，按字典序（对外导出）
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind 将Handler与参数绑定为WorkFunc（对外导出）
func (r *HandlerRegistry) Bind(name string, params map[string]interface{}) (WorkFunc, error) {
	h := r.Get(name)
	if h == nil {
		return nil, fmt.Errorf("Handler未注册: %s", name)
	}
	return func(ctx *ExecutionContext) error {
		return h(ctx, params)
	}, nil
}

// mustRegister 注册Handler，失败即panic（内部方法）
// 仅用于内置Handler的静态注册，名称冲突属于编码错误
func (r *HandlerRegistry) mustRegister(name string, h Handler) {
	if err := r.Register(name, h); err != nil {
		panic(fmt.Sprintf("注册内置Handler失败: %v", err))
	}
}

// DefaultRegistry 创建并注册全部内置Handler的注册中心（对外导出）
func DefaultRegistry() *HandlerRegistry {
	r := NewHandlerRegistry()
	r.mustRegister("delay", DelayHandler)
	r.mustRegister("command", CommandHandler)
	r.mustRegister("http_fetch", HTTPFetchHandler)
	r.mustRegister("html_extract", HTMLExtractHandler)
	r.mustRegister("state_copy", StateCopyHandler)
	r.mustRegister("sql_exec", SQLExecHandler)
	return r
}
