package task

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// 内置Handler库：常用工作函数的声明式封装。
// 每个Handler从params读取配置，经由ExecutionContext读写共享状态，
// 并监听ctx.Done()以支持协作式取消。

// paramString 读取字符串参数（内部方法）
func paramString(params map[string]interface{}, key string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// paramInt 读取整数参数（内部方法）
func paramInt(params map[string]interface{}, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// DelayHandler 延时Handler（对外导出）
// 参数：delay_ms (int, 必填)
func DelayHandler(ctx *ExecutionContext, params map[string]interface{}) error {
	delayMs, ok := paramInt(params, "delay_ms")
	if !ok || delayMs < 0 {
		return fmt.Errorf("参数 delay_ms 缺失或非法")
	}

	timer := time.NewTimer(time.Duration(delayMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Context().Err()
	}
}

// CommandHandler 命令执行Handler（对外导出）
// 在ExecutionContext的工作目录与环境变量下执行shell命令。
// 参数：command (string, 必填)、output_key (string, 可选：标准输出写入的共享状态key)
func CommandHandler(ctx *ExecutionContext, params map[string]interface{}) error {
	command := paramString(params, "command")
	if command == "" {
		return fmt.Errorf("参数 command 不能为空")
	}

	cmd := exec.CommandContext(ctx.Context(), "sh", "-c", command)
	if ctx.WorkDir != "" {
		cmd.Dir = ctx.WorkDir
	}
	env := os.Environ()
	for k, v := range ctx.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("命令执行失败: %s, 输出=%s, Error=%w", command, strings.TrimSpace(string(output)), err)
	}

	if key := paramString(params, "output_key"); key != "" {
		ctx.Set(key, strings.TrimSpace(string(output)))
	}
	return nil
}

// HTTPFetchHandler HTTP抓取Handler（对外导出）
// 参数：url (string, 必填)、output_key (string, 必填：响应体写入的共享状态key)
func HTTPFetchHandler(ctx *ExecutionContext, params map[string]interface{}) error {
	url := paramString(params, "url")
	if url == "" {
		return fmt.Errorf("参数 url 不能为空")
	}
	outputKey := paramString(params, "output_key")
	if outputKey == "" {
		return fmt.Errorf("参数 output_key 不能为空")
	}

	req, err := http.NewRequestWithContext(ctx.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %s, Error=%w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("请求返回非成功状态码: %s, StatusCode=%d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	ctx.Set(outputKey, string(body))
	return nil
}

// HTMLExtractHandler HTML内容提取Handler（对外导出）
// 从共享状态中的HTML文本按CSS选择器提取文本内容。
// 参数：source_key (string, 必填)、selector (string, 必填)、
// output_key (string, 必填：提取结果[]string写入的共享状态key)
func HTMLExtractHandler(ctx *ExecutionContext, params map[string]interface{}) error {
	sourceKey := paramString(params, "source_key")
	selector := paramString(params, "selector")
	outputKey := paramString(params, "output_key")
	if sourceKey == "" || selector == "" || outputKey == "" {
		return fmt.Errorf("参数 source_key/selector/output_key 均不能为空")
	}

	html := ctx.GetString(sourceKey)
	if html == "" {
		return fmt.Errorf("共享状态 %s 中没有HTML内容", sourceKey)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("解析HTML失败: %w", err)
	}

	results := make([]string, 0)
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		results = append(results, strings.TrimSpace(s.Text()))
	})

	ctx.Set(outputKey, results)
	return nil
}

// StateCopyHandler 共享状态复制Handler（对外导出）
// 参数：from_key (string, 必填)、to_key (string, 必填)
func StateCopyHandler(ctx *ExecutionContext, params map[string]interface{}) error {
	fromKey := paramString(params, "from_key")
	toKey := paramString(params, "to_key")
	if fromKey == "" || toKey == "" {
		return fmt.Errorf("参数 from_key/to_key 均不能为空")
	}

	v, ok := ctx.Get(fromKey)
	if !ok {
		return fmt.Errorf("共享状态 %s 不存在", fromKey)
	}
	ctx.Set(toKey, v)
	return nil
}
