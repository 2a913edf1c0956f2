package app

import (
	"context"
	stderr "errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/jsonrpc"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/api"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/autoticket"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/zabbix"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// App 负责模块装配。API 与 AutoTicket 未启用时为 nil。
type App struct {
	Session    *jsonrpc.Client
	Factories  *zabbix.Factories
	API        *api.Server
	AutoTicket *autoticket.Publisher

	cleanup func()
}

func New(cfg *config.GlobalCfg) (*App, error) {
	a, cleanup, err := initApp(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "装配应用失败")
	}
	a.cleanup = cleanup
	return a, nil
}

// Start 登录校验凭据后启动各模块，直到 ctx 结束或任一模块出错。
func (a *App) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context 不能为空")
	}
	if err := a.Session.Login(ctx); err != nil {
		return errors.Wrap(err, "登录 Zabbix 失败")
	}
	if v, err := a.Session.Version(ctx); err == nil {
		log.Infof("已连接 Zabbix, API 版本 %s", v)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if a.API != nil {
		eg.Go(func() error {
			if err := a.API.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Wrap(err, "api 启动失败")
			}
			return nil
		})
	}

	if a.AutoTicket != nil {
		eg.Go(func() error {
			if err := a.AutoTicket.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Wrap(err, "autoticket 启动失败")
			}
			return nil
		})
	}

	log.Info("应用已启动，等待退出信号")
	return eg.Wait()
}

// Reload 配置文件重新加载后调用，只更新可在运行中调整的参数。
func (a *App) Reload(cfg *config.GlobalCfg) {
	if a.AutoTicket != nil {
		a.AutoTicket.Reload(cfg.AutoTicket)
	}
}

// Close 统一关闭持有的连接资源，需由上层在取消上下文后调用。
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.API != nil {
		if err := a.API.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, errors.Wrap(err, "stop api"))
		}
	}
	if a.Session != nil {
		if err := a.Session.Logout(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, "logout zabbix"))
		}
	}
	if a.cleanup != nil {
		a.cleanup()
	}

	return stderr.Join(errs...)
}
