//go:build wireinject
// +build wireinject

package app

import (
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/config"
	"github.com/google/wire"
)

func initApp(cfg *config.GlobalCfg) (*App, func(), error) {
	panic(wire.Build(ProviderSet))
}
