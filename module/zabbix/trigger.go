package zabbix

import (
	"context"
	"fmt"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/utils/timex"
)

// TriggerValue 触发器状态，同样用于事件的 value。
type TriggerValue int

const (
	TriggerOK      TriggerValue = 0
	TriggerProblem TriggerValue = 1
)

const (
	triggerScalars fieldGroup = 1 << iota
	triggerHosts
	triggerDependencies
)

type triggerRecord struct {
	Description *string        `mapstructure:"description"`
	Expression  *string        `mapstructure:"expression"`
	Comments    *string        `mapstructure:"comments"`
	Priority    *int           `mapstructure:"priority"`
	Value       *int           `mapstructure:"value"`
	Status      *int           `mapstructure:"status"`
	Hosts       *[]core.Record `mapstructure:"hosts"`
	Deps        *[]core.Record `mapstructure:"dependencies"`
}

// Trigger 触发器。所属主机在构造时给出，或在首次访问时解析。
type Trigger struct {
	session core.Session
	id      string
	fresh   freshness

	description field[string]
	expression  field[string]
	comments    field[string]
	priority    field[int]
	value       field[TriggerValue]
	status      field[int]

	rawHosts field[[]core.Record]
	host     *Host
	rawDeps  field[[]core.Record]
	deps     []*Trigger
}

// newTrigger host 可为 nil。
func newTrigger(s core.Session, rec core.Record, host *Host) (*Trigger, error) {
	id := identity(rec, "triggerid")
	if id == "" {
		return nil, missingIdentity("Trigger", "triggerid")
	}
	t := &Trigger{session: s, id: id, host: host}
	if err := t.merge(rec); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trigger) merge(rec core.Record) error {
	var r triggerRecord
	if err := decodeRecord(rec, &r); err != nil {
		return err
	}
	t.description.merge(r.Description)
	t.expression.merge(r.Expression)
	t.comments.merge(r.Comments)
	t.priority.merge(r.Priority)
	if r.Value != nil {
		t.value.fill(TriggerValue(*r.Value))
	}
	t.status.merge(r.Status)
	if r.Hosts != nil {
		t.rawHosts.fill(*r.Hosts)
		t.fresh.mark(triggerHosts)
	}
	if r.Deps != nil {
		t.rawDeps.fill(*r.Deps)
		t.fresh.mark(triggerDependencies)
	}
	return nil
}

func (t *Trigger) hydrate(ctx context.Context, g fieldGroup) error {
	params := core.Params{"triggerids": []string{t.id}}
	switch g {
	case triggerHosts:
		params["output"] = []string{"triggerid"}
		params["selectHosts"] = extend
	case triggerDependencies:
		params["output"] = []string{"triggerid"}
		params["selectDependencies"] = extend
	default:
		params["output"] = extend
		params["expandDescription"] = true
	}
	rec, err := fetchOne(ctx, t.session, "trigger.get", params, "triggerid", t.id)
	if err != nil {
		return err
	}
	if err := t.merge(rec); err != nil {
		return err
	}
	t.fresh.mark(g)
	return nil
}

func (t *Trigger) ensure(ctx context.Context, present bool) error {
	if present || t.fresh.has(triggerScalars) {
		return nil
	}
	return t.hydrate(ctx, triggerScalars)
}

func (t *Trigger) ID() string {
	return t.id
}

func (t *Trigger) Description(ctx context.Context) (string, error) {
	if err := t.ensure(ctx, t.description.ok); err != nil {
		return "", err
	}
	return t.description.val, nil
}

func (t *Trigger) Expression(ctx context.Context) (string, error) {
	if err := t.ensure(ctx, t.expression.ok); err != nil {
		return "", err
	}
	return t.expression.val, nil
}

func (t *Trigger) Comments(ctx context.Context) (string, error) {
	if err := t.ensure(ctx, t.comments.ok); err != nil {
		return "", err
	}
	return t.comments.val, nil
}

// Priority 严重级别 0-5。
func (t *Trigger) Priority(ctx context.Context) (int, error) {
	if err := t.ensure(ctx, t.priority.ok); err != nil {
		return 0, err
	}
	return t.priority.val, nil
}

func (t *Trigger) Value(ctx context.Context) (TriggerValue, error) {
	if err := t.ensure(ctx, t.value.ok); err != nil {
		return 0, err
	}
	return t.value.val, nil
}

// Host 所属主机。
func (t *Trigger) Host(ctx context.Context) (*Host, error) {
	if t.host != nil {
		return t.host, nil
	}
	if !t.fresh.has(triggerHosts) {
		if err := t.hydrate(ctx, triggerHosts); err != nil {
			return nil, err
		}
	}
	if len(t.rawHosts.val) == 0 {
		return nil, notFound("trigger.get", "triggerid", t.id+" hosts")
	}
	host, err := newHost(t.session, t.rawHosts.val[0])
	if err != nil {
		return nil, err
	}
	t.host = host
	return host, nil
}

// Dependencies 该触发器依赖的触发器。
func (t *Trigger) Dependencies(ctx context.Context) ([]*Trigger, error) {
	if !t.fresh.has(triggerDependencies) {
		if err := t.hydrate(ctx, triggerDependencies); err != nil {
			return nil, err
		}
	}
	deps, err := materialize(t.deps, t.rawDeps.val, func(rec core.Record) (*Trigger, error) {
		return newTrigger(t.session, rec, nil)
	})
	if err != nil {
		return nil, err
	}
	t.deps = deps
	return deps, nil
}

func (t *Trigger) purgeDependencies() {
	t.rawDeps = field[[]core.Record]{}
	t.deps = nil
	t.fresh.purge(triggerDependencies)
}

// AddDependency 只写远程，缓存的依赖集合被清空，下次访问重新拉取。
func (t *Trigger) AddDependency(ctx context.Context, dep *Trigger) error {
	err := t.session.Call(ctx, "trigger.adddependencies", core.Params{
		"triggerid":          t.id,
		"dependsOnTriggerid": dep.ID(),
	}, nil)
	if err != nil {
		return err
	}
	t.purgeDependencies()
	log.Infow("触发器依赖已添加", "triggerid", t.id, "depends_on", dep.ID())
	return nil
}

// DeleteDependencies 删除全部依赖。
func (t *Trigger) DeleteDependencies(ctx context.Context) error {
	err := t.session.Call(ctx, "trigger.deletedependencies", []core.Params{{"triggerid": t.id}}, nil)
	if err != nil {
		return err
	}
	t.purgeDependencies()
	log.Infow("触发器依赖已删除", "triggerid", t.id)
	return nil
}

// EventQuery 查询触发器最近事件的条件，零值表示使用默认值。
type EventQuery struct {
	Since        time.Duration // 默认 1 小时
	Limit        int           // 默认 10
	Acknowledged *bool
	Value        *TriggerValue
}

func (q EventQuery) params(triggerID string) core.Params {
	if q.Since <= 0 {
		q.Since = time.Hour
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	params := core.Params{
		"output":              extend,
		"objectids":           []string{triggerID},
		"source":              0,
		"object":              0,
		"time_from":           timex.UnixBefore(nowFunc(), q.Since),
		"sortfield":           []string{"clock", "eventid"},
		"sortorder":           "DESC",
		"limit":               q.Limit,
		"select_acknowledges": extend,
		"selectTags":          extend,
	}
	if q.Acknowledged != nil {
		params["acknowledged"] = *q.Acknowledged
	}
	if q.Value != nil {
		params["value"] = int(*q.Value)
	}
	return params
}

// LastEvents 最近的事件，事件直接关联到当前触发器，不再额外解析。
func (t *Trigger) LastEvents(ctx context.Context, q EventQuery) (*Cursor[*Event], error) {
	records, err := fetchAll(ctx, t.session, "event.get", q.params(t.id))
	if err != nil {
		return nil, err
	}
	return newCursor(records, func(_ context.Context, rec core.Record) (*Event, error) {
		return newEvent(t.session, rec, t)
	}), nil
}

// LastTicketKeys 最近一小时已确认问题事件中的确认消息，运维在确认时填写工单号。
func (t *Trigger) LastTicketKeys(ctx context.Context) ([]string, error) {
	acked := true
	problem := TriggerProblem
	cur, err := t.LastEvents(ctx, EventQuery{Acknowledged: &acked, Value: &problem})
	if err != nil {
		return nil, err
	}
	var keys []string
	for cur.Next(ctx) {
		acks, err := cur.Value().Acknowledges(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range acks {
			if a.Message != "" {
				keys = append(keys, a.Message)
			}
		}
	}
	return keys, cur.Err()
}

func (t *Trigger) String() string {
	return fmt.Sprintf("Trigger(%s)", t.id)
}

// TriggerFactory 触发器工厂。构造时总会解析所属主机。
type TriggerFactory struct {
	session core.Session
}

func NewTriggerFactory(s core.Session) *TriggerFactory {
	return &TriggerFactory{session: s}
}

// Make 通过一次 trigger.get selectHosts 解析所属主机后构造。
func (f *TriggerFactory) Make(ctx context.Context, rec core.Record) (*Trigger, error) {
	id := identity(rec, "triggerid")
	if id == "" {
		return nil, missingIdentity("Trigger", "triggerid")
	}
	withHosts, err := fetchOne(ctx, f.session, "trigger.get", core.Params{
		"output":      []string{"triggerid"},
		"triggerids":  []string{id},
		"selectHosts": extend,
	}, "triggerid", id)
	if err != nil {
		return nil, err
	}
	return triggerWithHost(f.session, rec, withHosts["hosts"])
}

// triggerWithHost 用 hosts 列表中的第一个主机作为所属主机。
func triggerWithHost(s core.Session, rec core.Record, hosts any) (*Trigger, error) {
	list, _ := hosts.([]any)
	if len(list) == 0 {
		return nil, notFound("trigger.get", "triggerid", identity(rec, "triggerid")+" hosts")
	}
	hostRec, ok := list[0].(map[string]any)
	if !ok {
		return nil, notFound("trigger.get", "triggerid", identity(rec, "triggerid")+" hosts")
	}
	host, err := newHost(s, hostRec)
	if err != nil {
		return nil, err
	}
	return newTrigger(s, rec, host)
}

// GetByID 一次调用同时取回触发器与主机。
func (f *TriggerFactory) GetByID(ctx context.Context, id string) (*Trigger, error) {
	rec, err := fetchOne(ctx, f.session, "trigger.get", core.Params{
		"output":            extend,
		"triggerids":        []string{id},
		"selectHosts":       extend,
		"expandDescription": true,
	}, "triggerid", id)
	if err != nil {
		return nil, err
	}
	return triggerWithHost(f.session, rec, rec["hosts"])
}

func (f *TriggerFactory) GetByFilter(ctx context.Context, filter core.Params) (*Cursor[*Trigger], error) {
	records, err := fetchAll(ctx, f.session, "trigger.get", core.Params{
		"output":            extend,
		"filter":            filter,
		"expandDescription": true,
	})
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.Make), nil
}

// GetByName 按描述精确查找，描述不唯一，返回全部匹配。
func (f *TriggerFactory) GetByName(ctx context.Context, description string) (*Cursor[*Trigger], error) {
	return f.GetByFilter(ctx, core.Params{"description": description})
}

// Search 模糊查找，支持 * 通配。
func (f *TriggerFactory) Search(ctx context.Context, search core.Params, options core.Params) (*Cursor[*Trigger], error) {
	params := core.Params{
		"output":                 extend,
		"search":                 search,
		"searchWildcardsEnabled": true,
		"expandDescription":      true,
	}
	for k, v := range options {
		params[k] = v
	}
	records, err := fetchAll(ctx, f.session, "trigger.get", params)
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.Make), nil
}

// GetByHost 主机已知，触发器直接关联，不再解析主机。
func (f *TriggerFactory) GetByHost(ctx context.Context, host *Host, filter core.Params) (*Cursor[*Trigger], error) {
	params := core.Params{
		"output":            extend,
		"hostids":           []string{host.ID()},
		"expandDescription": true,
	}
	if len(filter) > 0 {
		params["filter"] = filter
	}
	records, err := fetchAll(ctx, f.session, "trigger.get", params)
	if err != nil {
		return nil, err
	}
	return newCursor(records, func(_ context.Context, rec core.Record) (*Trigger, error) {
		return newTrigger(f.session, rec, host)
	}), nil
}
