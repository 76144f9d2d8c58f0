package task

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDelayHandler(t *testing.T) {
	ec := NewExecutionContext("")

	start := time.Now()
	if err := DelayHandler(ec, map[string]interface{}{"delay_ms": 30}); err != nil {
		t.Fatalf("延时Handler失败: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("延时不足: %v", elapsed)
	}

	if err := DelayHandler(ec, map[string]interface{}{}); err == nil {
		t.Error("缺失delay_ms应报错")
	}
}

func TestDelayHandler_CancelledContext(t *testing.T) {
	ec := NewExecutionContext("")
	ctx, cancel := context.WithCancel(context.Background())
	ec.WithContext(ctx)
	cancel()

	start := time.Now()
	err := DelayHandler(ec, map[string]interface{}{"delay_ms": 5000})
	if err == nil {
		t.Fatal("取消后延时应立即返回错误")
	}
	if time.Since(start) > time.Second {
		t.Error("取消后不应继续等待")
	}
}

func TestCommandHandler(t *testing.T) {
	ec := NewExecutionContext(t.TempDir())
	ec.Env["GREETING"] = "你好"

	params := map[string]interface{}{
		"command":    "printf '%s' \"$GREETING\"",
		"output_key": "out",
	}
	if err := CommandHandler(ec, params); err != nil {
		t.Fatalf("命令执行失败: %v", err)
	}
	if got := ec.GetString("out"); got != "你好" {
		t.Errorf("命令输出错误: %q", got)
	}

	if err := CommandHandler(ec, map[string]interface{}{"command": "exit 3"}); err == nil {
		t.Error("非零退出码应报错")
	}
	if err := CommandHandler(ec, map[string]interface{}{}); err == nil {
		t.Error("缺失command应报错")
	}
}

func TestHTTPFetchAndHTMLExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><ul><li class="item">甲</li><li class="item">乙</li></ul></body></html>`))
	}))
	defer server.Close()

	ec := NewExecutionContext("")

	if err := HTTPFetchHandler(ec, map[string]interface{}{
		"url":        server.URL,
		"output_key": "page",
	}); err != nil {
		t.Fatalf("抓取失败: %v", err)
	}
	if ec.GetString("page") == "" {
		t.Fatal("响应体未写入共享状态")
	}

	if err := HTMLExtractHandler(ec, map[string]interface{}{
		"source_key": "page",
		"selector":   "li.item",
		"output_key": "items",
	}); err != nil {
		t.Fatalf("提取失败: %v", err)
	}

	items, ok := ec.MustGet("items").([]string)
	if !ok {
		t.Fatalf("提取结果类型错误: %T", ec.MustGet("items"))
	}
	if len(items) != 2 || items[0] != "甲" || items[1] != "乙" {
		t.Errorf("提取结果错误: %v", items)
	}
}

func TestHTTPFetchHandler_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ec := NewExecutionContext("")
	err := HTTPFetchHandler(ec, map[string]interface{}{
		"url":        server.URL,
		"output_key": "page",
	})
	if err == nil {
		t.Error("非2xx状态码应报错")
	}
}

func TestHTMLExtractHandler_MissingSource(t *testing.T) {
	ec := NewExecutionContext("")
	err := HTMLExtractHandler(ec, map[string]interface{}{
		"source_key": "nothing",
		"selector":   "p",
		"output_key": "out",
	})
	if err == nil {
		t.Error("源key不存在应报错")
	}
}

func TestStateCopyHandler(t *testing.T) {
	ec := NewExecutionContext("")
	ec.Set("src", []string{"a", "b"})

	if err := StateCopyHandler(ec, map[string]interface{}{
		"from_key": "src",
		"to_key":   "dst",
	}); err != nil {
		t.Fatalf("复制失败: %v", err)
	}
	if _, ok := ec.Get("dst"); !ok {
		t.Error("目标key未写入")
	}

	if err := StateCopyHandler(ec, map[string]interface{}{
		"from_key": "missing",
		"to_key":   "dst",
	}); err == nil {
		t.Error("源key不存在应报错")
	}
}
