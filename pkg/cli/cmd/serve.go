package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LENAX/workflow-engine/pkg/api"
	"github.com/LENAX/workflow-engine/pkg/config"
	"github.com/LENAX/workflow-engine/pkg/core/builder"
	"github.com/LENAX/workflow-engine/pkg/core/engine"
	"github.com/LENAX/workflow-engine/pkg/storage"
)

var scheduledFiles []string

// serveCmd 启动HTTP API服务
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP API服务",
	Long: `启动工作流引擎的HTTP API服务，提供Workflow提交执行、
生命周期控制（暂停/恢复/取消）、Task重试、历史查询与
WebSocket实时事件推送。

通过 -w 注册的Workflow定义文件需要包含cron表达式，
服务启动后按表达式定时触发执行。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		eng := engine.New(cfg)
		defer eng.Close()
		b := builder.NewWorkflowBuilder(nil)

		if cfg.ArchiveDriver != "" {
			repo, err := storage.NewSQLRunRecordRepository(cmd.Context(), cfg.ArchiveDriver, cfg.ArchiveDSN)
			if err != nil {
				return err
			}
			defer repo.Close()

			archiver := storage.NewArchiver(repo, eng.Events())
			if err := archiver.Start(); err != nil {
				return err
			}
			defer archiver.Stop()
		}

		scheduler, err := registerScheduledWorkflows(eng, b)
		if err != nil {
			return err
		}
		if scheduler != nil {
			scheduler.Start()
			defer scheduler.Stop()
		}

		server := api.NewServer(eng, b, cfg.HTTPPort)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-quit:
			log.Printf("收到信号 %v，正在关闭服务...", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		}
	},
}

// registerScheduledWorkflows 加载并注册定时Workflow（内部方法）
// 没有注册任何定时Workflow时返回nil调度器
func registerScheduledWorkflows(eng *engine.Engine, b *builder.WorkflowBuilder) (*engine.CronScheduler, error) {
	if len(scheduledFiles) == 0 {
		return nil, nil
	}

	scheduler := engine.NewCronScheduler(eng)
	for _, path := range scheduledFiles {
		wfCfg, err := config.LoadWorkflowConfig(path)
		if err != nil {
			return nil, err
		}
		if wfCfg.Workflow.CronExpr == "" {
			return nil, fmt.Errorf("定时Workflow缺少cron表达式: %s", path)
		}
		wf, err := b.Build(&wfCfg.Workflow)
		if err != nil {
			return nil, err
		}
		if err := scheduler.RegisterWorkflow(wf, wfCfg.Workflow.CronExpr); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

func init() {
	serveCmd.Flags().StringArrayVarP(&scheduledFiles, "workflow", "w", nil, "定时Workflow定义文件，可重复指定")
	rootCmd.AddCommand(serveCmd)
}
