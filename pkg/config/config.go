package config

// EngineConfig 引擎核心配置（对外导出）
type EngineConfig struct {
	MaxWorkers        int `yaml:"max_workers"`          // 批次内最大并发数
	DefaultTimeoutMs  int `yaml:"default_timeout_ms"`   // Task默认执行超时（毫秒）
	DefaultMaxRetries int `yaml:"default_max_retries"`  // Task默认最大重试次数
	RetryDelayMs      int `yaml:"retry_delay_ms"`       // 重试基础延迟（毫秒，线性退避）
	HistorySize       int `yaml:"history_size"`         // 执行历史容量
	HTTPPort          int `yaml:"http_port"`            // HTTP API端口

	// 可选：执行记录归档数据库。ArchiveDriver为空时不启用归档
	ArchiveDriver string `yaml:"archive_driver"` // sqlite3/mysql/postgres
	ArchiveDSN    string `yaml:"archive_dsn"`    // 数据库连接字符串
}

// DefaultEngineConfig 返回默认配置（对外导出）
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxWorkers:        10,
		DefaultTimeoutMs:  30000,
		DefaultMaxRetries: 3,
		RetryDelayMs:      1000,
		HistorySize:       10,
		HTTPPort:          8080,
	}
}

// ApplyDefaults 对未设置的字段应用默认值（对外导出）
func (c *EngineConfig) ApplyDefaults() {
	def := DefaultEngineConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.DefaultTimeoutMs <= 0 {
		c.DefaultTimeoutMs = def.DefaultTimeoutMs
	}
	if c.DefaultMaxRetries <= 0 {
		c.DefaultMaxRetries = def.DefaultMaxRetries
	}
	if c.RetryDelayMs <= 0 {
		c.RetryDelayMs = def.RetryDelayMs
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.HTTPPort <= 0 {
		c.HTTPPort = def.HTTPPort
	}
}
