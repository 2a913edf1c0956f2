package app

import (
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/cache"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/jsonrpc"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/kafka"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/api"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/autoticket"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/zabbix"
	"github.com/google/wire"
	"github.com/pkg/errors"
)

var ProviderSet = wire.NewSet(
	provideCache,
	provideSession,
	wire.Bind(new(core.Session), new(*jsonrpc.Client)),
	zabbix.ProviderSet,
	provideProducer,
	provideAutoTicket,
	provideAPI,
	wire.Struct(new(App), "Session", "Factories", "API", "AutoTicket"),
)

// provideCache 启用 Redis 时多个实例共享登录令牌与去重记录，否则使用进程内缓存。
func provideCache(cfg *config.GlobalCfg) (core.Cache, func(), error) {
	var (
		c   core.Cache
		err error
	)
	if cfg.Redis.Enabled {
		c, err = cache.NewRedisCache(cfg.Redis.RedisConfig)
		if err != nil {
			return nil, nil, errors.Wrap(err, "初始化 Redis 失败")
		}
	} else {
		c = cache.NewMemoryCache()
	}
	cleanup := func() {
		if err := c.Close(); err != nil {
			log.Errorf("close cache: %v", err)
		}
	}
	return c, cleanup, nil
}

func provideSession(cfg *config.GlobalCfg, tokens core.Cache) *jsonrpc.Client {
	return jsonrpc.NewClient(cfg.Zabbix, tokens)
}

// provideProducer 自动工单未启用时不连接 Kafka。
func provideProducer(cfg *config.GlobalCfg) (core.KafkaProducer, func(), error) {
	if !cfg.AutoTicket.Enabled {
		return nil, func() {}, nil
	}
	p, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return nil, nil, errors.Wrap(err, "初始化 Kafka 失败")
	}
	cleanup := func() {
		if err := p.Close(); err != nil {
			log.Errorf("close kafka producer: %v", err)
		}
	}
	return p, cleanup, nil
}

func provideAutoTicket(cfg *config.GlobalCfg, problems *zabbix.ProblemFactory, producer core.KafkaProducer, dedupe core.Cache) *autoticket.Publisher {
	if !cfg.AutoTicket.Enabled {
		return nil
	}
	return autoticket.NewPublisher(problems, producer, dedupe, cfg.AutoTicket)
}

func provideAPI(cfg *config.GlobalCfg, factories *zabbix.Factories) *api.Server {
	if !cfg.API.Enabled {
		return nil
	}
	return api.New(cfg.API, factories)
}
