package autoticket

import (
	"context"
	"sync"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/zabbix"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

const dedupeKeyPrefix = "autoticket:"

// Ticket 推送到 Kafka 的工单消息。
type Ticket struct {
	ID                 string `json:"id"`
	EventID            string `json:"event_id"`
	Name               string `json:"name"`
	Severity           int    `json:"severity"`
	Clock              int64  `json:"clock"`
	TriggerID          string `json:"trigger_id"`
	TriggerDescription string `json:"trigger_description"`
	HostID             string `json:"host_id"`
	HostName           string `json:"host_name"`
	HostIP             string `json:"host_ip"`
	VIP                string `json:"vip"`
	CreatedAt          int64  `json:"created_at"`
}

// Result 一轮推送的统计。
type Result struct {
	Total     int
	Exceeded  bool
	Published int
	Skipped   int
	Failed    int
}

// Publisher 定时查询近期问题，为每个问题推送一条工单消息。
type Publisher struct {
	problems *zabbix.ProblemFactory
	producer core.KafkaProducer
	cache    core.Cache
	cfg      config.AutoTicketCfg

	mu    sync.Mutex // 同一时刻只跑一轮
	newID func() string
	now   func() time.Time
}

func NewPublisher(problems *zabbix.ProblemFactory, producer core.KafkaProducer, cache core.Cache, cfg config.AutoTicketCfg) *Publisher {
	return &Publisher{
		problems: problems,
		producer: producer,
		cache:    cache,
		cfg:      cfg,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

func (p *Publisher) query() zabbix.RecentQuery {
	return zabbix.RecentQuery{
		GroupIDs: p.cfg.GroupIDs,
		Tags:     p.cfg.Tags,
		Since:    p.cfg.Since,
		Limit:    p.cfg.Limit,
	}
}

// Reload 应用新的查询与推送参数，下一轮生效。调度表达式需重启后生效。
func (p *Publisher) Reload(cfg config.AutoTicketCfg) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cfg.Schedule != p.cfg.Schedule {
		log.Warnf("自动工单调度表达式变更需重启生效, 当前=%s, 新=%s", p.cfg.Schedule, cfg.Schedule)
	}
	cfg.Enabled, cfg.Schedule = p.cfg.Enabled, p.cfg.Schedule
	p.cfg = cfg
	log.Infow("自动工单配置已更新", "group_ids", cfg.GroupIDs, "tags", cfg.Tags, "limit", cfg.Limit)
}

// Start 按 cron 表达式调度，ctx 结束后等待正在执行的一轮完成。
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	schedule := p.cfg.Schedule
	p.mu.Unlock()

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := p.RunOnce(ctx); err != nil {
			log.Errorf("自动工单推送失败: %v", err)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "cron 表达式不合法: %s", schedule)
	}
	log.Infof("自动工单推送已启动, schedule=%s", schedule)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("自动工单推送已停止")
	return nil
}

// RunOnce 执行一轮推送。单个问题失败只记录日志，不影响后续问题。
func (p *Publisher) RunOnce(ctx context.Context) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res Result
	cur, err := p.problems.Recent(ctx, p.query())
	if err != nil {
		return res, errors.Wrap(err, "查询近期问题失败")
	}
	res.Total = cur.Total()
	if cur.Exceeded() {
		res.Exceeded = true
		log.Warnf("近期问题数量达到上限 %d，本轮不推送", cur.Total())
		return res, nil
	}

	for cur.Next(ctx) {
		problem := cur.Value()
		published, err := p.publish(ctx, problem)
		switch {
		case err != nil:
			res.Failed++
			zabbix.ContainErr("推送工单失败 "+problem.String(), err)
		case published:
			res.Published++
		default:
			res.Skipped++
		}
	}
	if err := cur.Err(); err != nil {
		zabbix.ContainErr("遍历近期问题中断", err)
	}

	log.Infof("自动工单推送完成, 共 %d 个问题, 推送 %d, 跳过 %d, 失败 %d",
		res.Total, res.Published, res.Skipped, res.Failed)
	return res, nil
}

func (p *Publisher) publish(ctx context.Context, problem *zabbix.Problem) (bool, error) {
	key := dedupeKeyPrefix + problem.ID()
	seen, err := p.cache.Exists(ctx, key)
	if err != nil {
		return false, errors.Wrap(err, "查询去重缓存失败")
	}
	if seen {
		return false, nil
	}

	ticket, err := p.buildTicket(ctx, problem)
	if err != nil {
		return false, err
	}
	body, err := sonic.Marshal(ticket)
	if err != nil {
		return false, errors.Wrap(err, "序列化工单失败")
	}
	if err := p.producer.Publish(ctx, problem.ID(), body); err != nil {
		return false, err
	}
	if err := p.cache.Set(ctx, key, ticket.ID, p.cfg.DedupeTTL); err != nil {
		log.Warnf("写入去重缓存失败, eventid=%s: %v", problem.ID(), err)
	}
	log.Infow("已推送工单", "eventid", problem.ID(), "ticket", ticket.ID, "host", ticket.HostName, "vip", ticket.VIP)

	if p.cfg.Acknowledge {
		zabbix.ContainErr("确认问题失败 "+problem.String(),
			problem.Ack(ctx, p.cfg.AckMessage, zabbix.AckWithMessage))
	}
	return true, nil
}

// buildTicket 问题与触发器字段缺失时整条失败；主机 IP 与 VIP 缺失时留空。
func (p *Publisher) buildTicket(ctx context.Context, problem *zabbix.Problem) (*Ticket, error) {
	name, err := problem.Name(ctx)
	if err != nil {
		return nil, err
	}
	severity, err := problem.Severity(ctx)
	if err != nil {
		return nil, err
	}
	clock, err := problem.Clock(ctx)
	if err != nil {
		return nil, err
	}
	trigger := problem.Trigger()
	desc, err := trigger.Description(ctx)
	if err != nil {
		return nil, err
	}
	host, err := problem.Host(ctx)
	if err != nil {
		return nil, err
	}
	hostName, err := host.Name(ctx)
	if err != nil {
		return nil, err
	}

	rawIP, err := host.IP(ctx)
	ip, _ := zabbix.Contain("读取主机 IP 失败 "+host.String(), rawIP, err)
	rawVIP, err := host.VIP(ctx)
	vip, _ := zabbix.Contain("读取主机 VIP 失败 "+host.String(), rawVIP, err)

	return &Ticket{
		ID:                 p.newID(),
		EventID:            problem.ID(),
		Name:               name,
		Severity:           severity,
		Clock:              clock.Unix(),
		TriggerID:          trigger.ID(),
		TriggerDescription: desc,
		HostID:             host.ID(),
		HostName:           hostName,
		HostIP:             ip,
		VIP:                string(vip),
		CreatedAt:          p.now().Unix(),
	}, nil
}
