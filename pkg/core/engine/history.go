package engine

import (
	"sync"
	"time"
)

// DefaultHistorySize 历史记录默认容量
const DefaultHistorySize = 10

// HistoryEntry 一次Workflow执行的历史记录（对外导出）
type HistoryEntry struct {
	WorkflowID   string    `json:"workflow_id"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	DurationMs   int64     `json:"duration_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// History 有界执行历史（对外导出）
// FIFO环形缓冲：超出容量时丢弃最旧的记录；仅驻留内存，生命周期与引擎实例一致
type History struct {
	mu      sync.Mutex
	max     int
	entries []HistoryEntry
}

// NewHistory 创建History实例（对外导出）
// max <= 0 时使用默认容量
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{
		max:     max,
		entries: make([]HistoryEntry, 0, max),
	}
}

// Record 追加一条历史记录（对外导出）
func (h *History) Record(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		// 丢弃最旧的记录
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// List 返回全部历史记录，从旧到新（对外导出）
func (h *History) List() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]HistoryEntry, len(h.entries))
	copy(result, h.entries)
	return result
}

// Clear 清空历史记录（对外导出）
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}

// Len 返回当前记录数（对外导出）
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
