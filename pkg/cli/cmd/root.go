// Package cmd 实现workflow-engine命令行入口。
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	jsonOutput bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "workflow-engine",
	Short: "依赖感知的工作流执行引擎",
	Long: `workflow-engine 是一个依赖感知的工作流执行引擎。

从YAML定义构建任务图，按依赖批次执行：批次间串行、批次内并发，
支持超时控制、线性退避重试、暂停/恢复/取消与执行历史查询。

示例:
  workflow-engine run workflow.yaml          # 执行一个Workflow定义
  workflow-engine run workflow.yaml --json   # 以JSON输出执行结果
  workflow-engine serve                      # 启动HTTP API服务
  workflow-engine serve -w nightly.yaml      # 启动服务并注册定时Workflow`,
}

// Execute 执行根命令（对外导出）
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "引擎配置文件路径")
}
