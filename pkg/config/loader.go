package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load 加载引擎配置文件（对外导出）
// 文件不存在时返回默认配置；解析失败返回错误
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultEngineConfig(), nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

// LoadWorkflowConfig 加载Workflow定义文件（对外导出）
func LoadWorkflowConfig(path string) (*WorkflowConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取Workflow定义文件失败: %w", err)
	}

	var cfg WorkflowConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析Workflow定义文件失败: %w", err)
	}

	return &cfg, nil
}
