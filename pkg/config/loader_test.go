package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err, "配置文件不存在时应回退默认配置")
	assert.Equal(t, DefaultEngineConfig(), cfg)
}

func TestLoad_PartialConfigGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_workers: 2\nhttp_port: 9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxWorkers)
	assert.Equal(t, 9090, cfg.HTTPPort)
	// 未设置的字段补默认值
	assert.Equal(t, 30000, cfg.DefaultTimeoutMs)
	assert.Equal(t, 3, cfg.DefaultMaxRetries)
	assert.Equal(t, 1000, cfg.RetryDelayMs)
	assert.Equal(t, 10, cfg.HistorySize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_workers: [not a number"), 0o644))

	_, err := Load(path)
	assert.Error(t, err, "非法YAML应报错")
}

func TestLoadWorkflowConfig(t *testing.T) {
	content := `
workflow:
  name: 示例流程
  description: 两步流程
  work_dir: /tmp/demo
  env:
    MODE: test
  cron_expr: "0 0 3 * * *"
  tasks:
    - id: fetch
      name: 抓取页面
      handler: http_fetch
      params:
        url: http://example.com
        output_key: page
      writes: [page]
      timeout_ms: 5000
    - id: extract
      name: 提取内容
      handler: html_extract
      dependencies: [fetch]
      params:
        source_key: page
        selector: "li.item"
        output_key: items
      writes: [items]
      retryable: true
      max_retries: 2
`
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadWorkflowConfig(path)
	require.NoError(t, err)

	wf := cfg.Workflow
	assert.Equal(t, "示例流程", wf.Name)
	assert.Equal(t, "/tmp/demo", wf.WorkDir)
	assert.Equal(t, "test", wf.Env["MODE"])
	assert.Equal(t, "0 0 3 * * *", wf.CronExpr)
	require.Len(t, wf.Tasks, 2)

	extract := wf.TaskByID("extract")
	require.NotNil(t, extract)
	assert.Equal(t, []string{"fetch"}, extract.Dependencies)
	assert.True(t, extract.Retryable)
	assert.Equal(t, 2, extract.MaxRetries)
	assert.Equal(t, 5000, wf.TaskByID("fetch").TimeoutMs)

	assert.Nil(t, wf.TaskByID("ghost"))
}

func TestLoadWorkflowConfig_MissingFile(t *testing.T) {
	_, err := LoadWorkflowConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "Workflow定义文件不存在应报错")
}
