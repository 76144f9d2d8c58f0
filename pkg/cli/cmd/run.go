package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LENAX/workflow-engine/pkg/cli/output"
	"github.com/LENAX/workflow-engine/pkg/config"
	"github.com/LENAX/workflow-engine/pkg/core/builder"
	"github.com/LENAX/workflow-engine/pkg/core/engine"
	"github.com/LENAX/workflow-engine/pkg/core/task"
)

// runCmd 执行Workflow定义文件
var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "执行一个Workflow定义文件",
	Long: `从YAML定义文件构建Workflow并执行，阻塞直到执行结束。

执行结束后输出每个Task的状态与整体结果；任一Task失败时
整体结果为失败，退出码为1。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		eng := engine.New(cfg)
		defer eng.Close()

		b := builder.NewWorkflowBuilder(nil)
		wf, err := b.BuildFromFile(args[0])
		if err != nil {
			return err
		}

		h, err := eng.Run(wf, nil)
		if err != nil {
			return err
		}
		result := h.Wait()

		if jsonOutput {
			return output.PrintJSON(map[string]interface{}{
				"workflow_id": wf.ID,
				"name":        wf.Name,
				"status":      wf.Status,
				"progress":    wf.Progress,
				"result":      result,
				"tasks":       wf.Tasks,
			})
		}

		renderTaskTable(wf.Tasks)
		fmt.Println()
		if result.Success {
			output.PrintSuccess("✅ Workflow执行成功: %s (%d/%d, 耗时%dms)",
				wf.Name, result.TasksCompleted, result.TasksTotal, result.DurationMs)
			return nil
		}
		return fmt.Errorf("Workflow执行失败: %s (%d/%d完成): %s",
			wf.Name, result.TasksCompleted, result.TasksTotal, result.Error)
	},
}

// renderTaskTable 输出Task执行明细表格（内部方法）
func renderTaskTable(tasks []*task.Task) {
	table := output.NewTable([]string{"ID", "名称", "状态", "进度", "耗时", "错误"})
	for _, t := range tasks {
		duration := "-"
		if !t.StartTime.IsZero() && !t.EndTime.IsZero() {
			duration = t.EndTime.Sub(t.StartTime).Round(time.Millisecond).String()
		}
		errMsg := ""
		if t.Result != nil && !t.Result.Success {
			errMsg = t.Result.Error
		}
		table.AddRow([]string{
			t.ID,
			t.Name,
			output.StatusColor(string(t.Status)),
			fmt.Sprintf("%d%%", t.Progress),
			duration,
			errMsg,
		})
	}
	table.Render()
}

func init() {
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "以JSON格式输出结果")
	rootCmd.AddCommand(runCmd)
}
