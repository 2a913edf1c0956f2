package config

import (
	"strings"
	"sync"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/cache"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/jsonrpc"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/kafka"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	//配置文件信息
	cfgPath = "./config/"
	cfgName = "config"
	cfgType = "yaml"

	envPrefix = "ITOPS_ZABBIX"

	validate = validator.New()
)

const (
	ReleaseMode string = "release"
	DebugMode   string = "debug"
)

type GlobalCfg struct {
	App        AppCfg         `mapstructure:"app"`
	Log        log.LogCfg     `mapstructure:"log"`
	Zabbix     jsonrpc.Config `mapstructure:"zabbix"`
	Redis      RedisCfg       `mapstructure:"redis"`
	Kafka      kafka.Config   `mapstructure:"kafka"`
	AutoTicket AutoTicketCfg  `mapstructure:"autoticket"`
	API        APICfg         `mapstructure:"api"`
}

// application config
type AppCfg struct {
	Mode    string `mapstructure:"mode" validate:"oneof=release debug"` // 启动模式 : release，debug
	Version string `mapstructure:"version"`
}

// RedisCfg 未启用时使用进程内缓存。
type RedisCfg struct {
	Enabled           bool `mapstructure:"enabled"`
	cache.RedisConfig `mapstructure:",squash"`
}

// AutoTicketCfg 近期问题定时推送到 Kafka。
type AutoTicketCfg struct {
	Enabled     bool          `mapstructure:"enabled"`
	Schedule    string        `mapstructure:"schedule" validate:"required_if=Enabled true"` // cron 表达式
	GroupIDs    []string      `mapstructure:"group_ids" validate:"dive,numeric"`
	Tags        []string      `mapstructure:"tags"`
	Since       time.Duration `mapstructure:"since"`
	Limit       int           `mapstructure:"limit" validate:"gte=0"`
	DedupeTTL   time.Duration `mapstructure:"dedupe_ttl"` // 已推送事件的去重时长
	Acknowledge bool          `mapstructure:"acknowledge"`
	AckMessage  string        `mapstructure:"ack_message"`
}

// http server config
type APICfg struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port" validate:"required_if=Enabled true,omitempty,min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RunMode      string        `mapstructure:"-"`
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("app.mode", ReleaseMode)
	vp.SetDefault("log.level", "info")
	vp.SetDefault("log.max_size", 100)
	vp.SetDefault("log.max_age", 30)
	vp.SetDefault("log.max_backups", 20)
	vp.SetDefault("zabbix.timeout", 30*time.Second)
	vp.SetDefault("zabbix.token_ttl", 30*time.Minute)
	vp.SetDefault("zabbix.rate_limit", 0)
	vp.SetDefault("zabbix.burst", 1)
	vp.SetDefault("redis.enabled", false)
	vp.SetDefault("redis.prefix", "itops-zabbix:")
	vp.SetDefault("autoticket.enabled", false)
	vp.SetDefault("autoticket.schedule", "@every 1m")
	vp.SetDefault("autoticket.tags", []string{"autoticket"})
	vp.SetDefault("autoticket.since", time.Hour)
	vp.SetDefault("autoticket.limit", 500)
	vp.SetDefault("autoticket.dedupe_ttl", 24*time.Hour)
	vp.SetDefault("api.enabled", true)
	vp.SetDefault("api.port", 13060)
	vp.SetDefault("api.read_timeout", 30*time.Second)
	vp.SetDefault("api.write_timeout", 30*time.Second)
}

func newViper(path string) *viper.Viper {
	vp := viper.New()
	if path != "" {
		vp.SetConfigFile(path)
	} else {
		vp.AddConfigPath(cfgPath)
		vp.SetConfigName(cfgName)
	}
	vp.SetConfigType(cfgType)
	setDefaults(vp)
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	return vp
}

func loadSetting(vp *viper.Viper) (*GlobalCfg, error) {
	if err := vp.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}
	cfg := &GlobalCfg{}
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "解析配置文件失败")
	}
	setRunMode(cfg)
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "配置校验失败")
	}
	return cfg, nil
}

func setRunMode(cfg *GlobalCfg) {
	switch cfg.App.Mode {
	case ReleaseMode:
		cfg.Log.Development = false
		cfg.API.RunMode = gin.ReleaseMode
	default:
		cfg.Log.Development = true
		cfg.API.RunMode = gin.DebugMode
	}
}

// Load 读取一次配置。path 为空时从 ./config/config.yaml 读取。
func Load(path string) (*GlobalCfg, error) {
	return loadSetting(newViper(path))
}

// Manager 持有当前生效的配置，文件变动后重新加载。
type Manager struct {
	mu       sync.RWMutex
	vp       *viper.Viper
	cfg      *GlobalCfg
	onChange []func(*GlobalCfg)
}

func NewManager(path string) (*Manager, error) {
	vp := newViper(path)
	cfg, err := loadSetting(vp)
	if err != nil {
		return nil, errors.Wrap(err, "初始加载配置失败")
	}
	return &Manager{vp: vp, cfg: cfg}, nil
}

// Get 获取当前配置（线程安全）
func (m *Manager) Get() *GlobalCfg {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// OnChange 注册配置重新加载后的回调。
func (m *Manager) OnChange(fn func(*GlobalCfg)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Watch 监听配置文件，变动后重新加载；加载失败时保留旧配置。
func (m *Manager) Watch() {
	m.vp.OnConfigChange(func(e fsnotify.Event) {
		log.Infof("检测到配置文件变动: %s", e.Name)
		m.reload()
	})
	m.vp.WatchConfig()
}

func (m *Manager) reload() {
	cfg, err := loadSetting(m.vp)
	if err != nil {
		log.Errorf("重新加载配置失败: %v", err)
		return
	}
	m.mu.Lock()
	m.cfg = cfg
	callbacks := append([]func(*GlobalCfg){}, m.onChange...)
	m.mu.Unlock()

	log.SetDefaultLog(&cfg.Log)
	for _, fn := range callbacks {
		fn(cfg)
	}
	log.Info("配置重新加载成功")
}
