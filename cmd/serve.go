package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/app"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务与自动工单推送",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgManager, err := config.NewManager(cfgFile)
	if err != nil {
		return errors.Wrap(err, "创建配置管理器失败")
	}
	cfg := cfgManager.Get()

	log.SetDefaultLog(&cfg.Log)
	defer func() {
		_ = log.Sync()
	}()
	cfgManager.Watch()

	application, err := app.New(cfg)
	if err != nil {
		return errors.Wrap(err, "build app")
	}
	cfgManager.OnChange(application.Reload)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Close(shutdownCtx); err != nil {
			log.Errorf("close application: %v", err)
		}
	}()

	log.Infof("itops-zabbix %s 启动, zabbix=%s, api=%v(%d), autoticket=%v",
		Version, cfg.Zabbix.URL, cfg.API.Enabled, cfg.API.Port, cfg.AutoTicket.Enabled)
	if err := application.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "start application")
	}
	return nil
}
