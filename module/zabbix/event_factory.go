package zabbix

import (
	"context"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/utils/timex"
)

// DefaultRecentLimit 近期事件查询的默认上限。
const DefaultRecentLimit = 500

// RecentQuery 近期未确认问题的查询条件。
type RecentQuery struct {
	GroupIDs []string
	Tags     []string      // 任一标签匹配即可
	Since    time.Duration // 默认 1 小时
	Limit    int           // 结果数达到 Limit 时视为被截断，不产出任何实体
}

func (q RecentQuery) withDefaults() RecentQuery {
	if q.Since <= 0 {
		q.Since = time.Hour
	}
	if q.Limit <= 0 {
		q.Limit = DefaultRecentLimit
	}
	return q
}

func (q RecentQuery) params() core.Params {
	params := core.Params{
		"output":       extend,
		"time_from":    timex.UnixBefore(nowFunc(), q.Since),
		"acknowledged": false,
		"suppressed":   false,
		"selectTags":   extend,
		"sortorder":    "DESC",
		"limit":        q.Limit,
	}
	if len(q.GroupIDs) > 0 {
		params["groupids"] = q.GroupIDs
	}
	if len(q.Tags) > 0 {
		tags := make([]core.Params, 0, len(q.Tags))
		for _, t := range q.Tags {
			tags = append(tags, core.Params{"tag": t})
		}
		params["tags"] = tags
		params["evaltype"] = 2 // Or
	}
	return params
}

// tagParams 按标签值精确匹配。
func tagParams(tag, value string, limit int) core.Params {
	return core.Params{
		"output":     extend,
		"selectTags": extend,
		"tags":       []core.Params{{"tag": tag, "value": value, "operator": 1}},
		"sortorder":  "DESC",
		"limit":      limit,
	}
}

func filterParams(filter, options core.Params) core.Params {
	params := core.Params{"output": extend, "filter": filter}
	for k, v := range options {
		params[k] = v
	}
	return params
}

// EventFactory 事件工厂。构造时总会通过一次组合查询解析触发器与主机。
type EventFactory struct {
	session core.Session
}

func NewEventFactory(s core.Session) *EventFactory {
	return &EventFactory{session: s}
}

// eventWithTrigger 从 selectRelatedObject + selectHosts 的结果构造事件链。
func eventWithTrigger(s core.Session, rec, related core.Record) (*Event, error) {
	id := identity(rec, "eventid")
	obj, _ := related["relatedObject"].(map[string]any)
	if identity(obj, "triggerid") == "" {
		return nil, notFound("event.get", "eventid", id+" relatedObject")
	}
	trigger, err := triggerWithHost(s, obj, related["hosts"])
	if err != nil {
		return nil, err
	}
	return newEvent(s, rec, trigger)
}

// Make 通过 event.get selectRelatedObject/selectHosts 解析触发器与主机后构造。
func (f *EventFactory) Make(ctx context.Context, rec core.Record) (*Event, error) {
	id := identity(rec, "eventid")
	if id == "" {
		return nil, missingIdentity("Event", "eventid")
	}
	related, err := fetchOne(ctx, f.session, "event.get", core.Params{
		"output":              []string{"eventid"},
		"eventids":            []string{id},
		"selectRelatedObject": extend,
		"selectHosts":         extend,
	}, "eventid", id)
	if err != nil {
		return nil, err
	}
	return eventWithTrigger(f.session, rec, related)
}

// GetByID 一次调用同时取回事件、触发器与主机。
func (f *EventFactory) GetByID(ctx context.Context, id string) (*Event, error) {
	rec, err := fetchOne(ctx, f.session, "event.get", core.Params{
		"output":              extend,
		"eventids":            []string{id},
		"selectRelatedObject": extend,
		"selectHosts":         extend,
		"selectTags":          extend,
		"select_acknowledges": extend,
	}, "eventid", id)
	if err != nil {
		return nil, err
	}
	return eventWithTrigger(f.session, rec, rec)
}

// GetByFilter options 原样合并到 event.get 参数，例如 time_from、limit。
func (f *EventFactory) GetByFilter(ctx context.Context, filter core.Params, options core.Params) (*Cursor[*Event], error) {
	records, err := fetchAll(ctx, f.session, "event.get", filterParams(filter, options))
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.Make), nil
}

// Recent 近期未确认、未抑制、未恢复的触发器问题事件。
func (f *EventFactory) Recent(ctx context.Context, q RecentQuery) (*Cursor[*Event], error) {
	q = q.withDefaults()
	params := q.params()
	params["source"] = 0
	params["object"] = 0
	params["value"] = int(TriggerProblem)
	params["filter"] = core.Params{"r_eventid": "0"}
	params["sortfield"] = []string{"clock", "eventid"}

	records, err := fetchAll(ctx, f.session, "event.get", params)
	if err != nil {
		return nil, err
	}
	return guardedCursor("event.get", q.Limit, records, f.Make), nil
}

func (f *EventFactory) GetByTag(ctx context.Context, tag, value string, limit int) (*Cursor[*Event], error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	params := tagParams(tag, value, limit)
	params["sortfield"] = []string{"clock", "eventid"}
	records, err := fetchAll(ctx, f.session, "event.get", params)
	if err != nil {
		return nil, err
	}
	return guardedCursor("event.get", limit, records, f.Make), nil
}

// ProblemFactory 问题工厂。构造时通过 objectid 解析触发器与主机。
type ProblemFactory struct {
	session core.Session
}

func NewProblemFactory(s core.Session) *ProblemFactory {
	return &ProblemFactory{session: s}
}

// Make 记录中缺少 objectid 时先补一次 problem.get，再以 trigger.get selectHosts 解析触发器与主机。
func (f *ProblemFactory) Make(ctx context.Context, rec core.Record) (*Problem, error) {
	id := identity(rec, "eventid")
	if id == "" {
		return nil, missingIdentity("Problem", "eventid")
	}
	objectID := identity(rec, "objectid")
	if objectID == "" {
		head, err := fetchOne(ctx, f.session, "problem.get", core.Params{
			"output":   []string{"eventid", "objectid"},
			"eventids": []string{id},
		}, "eventid", id)
		if err != nil {
			return nil, err
		}
		objectID = identity(head, "objectid")
	}

	trig, err := fetchOne(ctx, f.session, "trigger.get", core.Params{
		"output":            extend,
		"triggerids":        []string{objectID},
		"selectHosts":       extend,
		"expandDescription": true,
	}, "triggerid", objectID)
	if err != nil {
		return nil, err
	}
	trigger, err := triggerWithHost(f.session, trig, trig["hosts"])
	if err != nil {
		return nil, err
	}
	return newProblem(f.session, rec, trigger)
}

func (f *ProblemFactory) GetByID(ctx context.Context, id string) (*Problem, error) {
	rec, err := fetchOne(ctx, f.session, "problem.get", core.Params{
		"output":             extend,
		"eventids":           []string{id},
		"selectTags":         extend,
		"selectAcknowledges": extend,
	}, "eventid", id)
	if err != nil {
		return nil, err
	}
	return f.Make(ctx, rec)
}

func (f *ProblemFactory) GetByFilter(ctx context.Context, filter core.Params, options core.Params) (*Cursor[*Problem], error) {
	records, err := fetchAll(ctx, f.session, "problem.get", filterParams(filter, options))
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.Make), nil
}

// Recent 近期未确认、未抑制的问题。
func (f *ProblemFactory) Recent(ctx context.Context, q RecentQuery) (*Cursor[*Problem], error) {
	q = q.withDefaults()
	params := q.params()
	params["source"] = 0
	params["object"] = 0
	params["sortfield"] = []string{"eventid"}

	records, err := fetchAll(ctx, f.session, "problem.get", params)
	if err != nil {
		return nil, err
	}
	return guardedCursor("problem.get", q.Limit, records, f.Make), nil
}

func (f *ProblemFactory) GetByTag(ctx context.Context, tag, value string, limit int) (*Cursor[*Problem], error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	params := tagParams(tag, value, limit)
	params["sortfield"] = []string{"eventid"}
	records, err := fetchAll(ctx, f.session, "problem.get", params)
	if err != nil {
		return nil, err
	}
	return guardedCursor("problem.get", limit, records, f.Make), nil
}
