package zabbix

import (
	"context"
	"fmt"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
)

// AckAction event.acknowledge 的 action 位掩码。
type AckAction int

const (
	AckClose         AckAction = 1
	AckAcknowledge   AckAction = 2
	AckMessage       AckAction = 4
	AckSeverity      AckAction = 8
	AckUnacknowledge AckAction = 16
)

// AckWithMessage 确认并留言。
const AckWithMessage = AckAcknowledge | AckMessage

const (
	occurrenceScalars fieldGroup = 1 << iota
	occurrenceTags
	occurrenceAcknowledges
)

type Tag struct {
	Tag   string `mapstructure:"tag" json:"tag"`
	Value string `mapstructure:"value" json:"value"`
}

// Acknowledge 一条确认记录。
type Acknowledge struct {
	ID      string `mapstructure:"acknowledgeid" json:"acknowledgeid"`
	UserID  string `mapstructure:"userid" json:"userid"`
	Clock   int64  `mapstructure:"clock" json:"clock"`
	Message string `mapstructure:"message" json:"message"`
	Action  int    `mapstructure:"action" json:"action"`
}

type occurrenceRecord struct {
	Name         *string        `mapstructure:"name"`
	Clock        *int64         `mapstructure:"clock"`
	Value        *int           `mapstructure:"value"`
	Severity     *int           `mapstructure:"severity"`
	Acknowledged *int           `mapstructure:"acknowledged"`
	ObjectID     *string        `mapstructure:"objectid"`
	REventID     *string        `mapstructure:"r_eventid"`
	Tags         *[]Tag         `mapstructure:"tags"`
	Acks         *[]Acknowledge `mapstructure:"acknowledges"`
}

// occurrence event.get 与 problem.get 共用的字段与行为。
type occurrence struct {
	session   core.Session
	resource  string // event 或 problem
	ackSelect string // 两个接口选择确认记录的参数名不同
	id        string
	fresh     freshness

	name         field[string]
	clock        field[time.Time]
	value        field[TriggerValue]
	severity     field[int]
	acknowledged field[bool]
	objectID     field[string]
	rEventID     field[string]
	tags         field[[]Tag]
	acks         field[[]Acknowledge]

	trigger *Trigger
}

func (o *occurrence) merge(rec core.Record) error {
	var r occurrenceRecord
	if err := decodeRecord(rec, &r); err != nil {
		return err
	}
	o.name.merge(r.Name)
	o.clock.merge(unixTime(r.Clock))
	if r.Value != nil {
		o.value.fill(TriggerValue(*r.Value))
	}
	o.severity.merge(r.Severity)
	o.acknowledged.merge(flag(r.Acknowledged))
	o.objectID.merge(r.ObjectID)
	o.rEventID.merge(r.REventID)
	if r.Tags != nil {
		o.tags.fill(*r.Tags)
		o.fresh.mark(occurrenceTags)
	}
	if r.Acks != nil {
		o.acks.fill(*r.Acks)
		o.fresh.mark(occurrenceAcknowledges)
	}
	return nil
}

func (o *occurrence) hydrate(ctx context.Context, g fieldGroup) error {
	params := core.Params{"eventids": []string{o.id}}
	switch g {
	case occurrenceTags:
		params["output"] = []string{"eventid"}
		params["selectTags"] = extend
	case occurrenceAcknowledges:
		params["output"] = []string{"eventid"}
		params[o.ackSelect] = extend
	default:
		params["output"] = extend
	}
	method := o.resource + ".get"
	rec, err := fetchOne(ctx, o.session, method, params, "eventid", o.id)
	if err != nil {
		return err
	}
	if err := o.merge(rec); err != nil {
		return err
	}
	o.fresh.mark(g)
	return nil
}

func (o *occurrence) ensure(ctx context.Context, present bool) error {
	if present || o.fresh.has(occurrenceScalars) {
		return nil
	}
	return o.hydrate(ctx, occurrenceScalars)
}

func (o *occurrence) ID() string {
	return o.id
}

// Trigger 引发该事件的触发器。
func (o *occurrence) Trigger() *Trigger {
	return o.trigger
}

// Host 经由触发器得到的主机。
func (o *occurrence) Host(ctx context.Context) (*Host, error) {
	return o.trigger.Host(ctx)
}

func (o *occurrence) Name(ctx context.Context) (string, error) {
	if err := o.ensure(ctx, o.name.ok); err != nil {
		return "", err
	}
	return o.name.val, nil
}

func (o *occurrence) Clock(ctx context.Context) (time.Time, error) {
	if err := o.ensure(ctx, o.clock.ok); err != nil {
		return time.Time{}, err
	}
	return o.clock.val, nil
}

func (o *occurrence) Severity(ctx context.Context) (int, error) {
	if err := o.ensure(ctx, o.severity.ok); err != nil {
		return 0, err
	}
	return o.severity.val, nil
}

func (o *occurrence) Acknowledged(ctx context.Context) (bool, error) {
	if err := o.ensure(ctx, o.acknowledged.ok); err != nil {
		return false, err
	}
	return o.acknowledged.val, nil
}

// ObjectID 触发器 ID。
func (o *occurrence) ObjectID(ctx context.Context) (string, error) {
	if err := o.ensure(ctx, o.objectID.ok); err != nil {
		return "", err
	}
	return o.objectID.val, nil
}

func (o *occurrence) Tags(ctx context.Context) ([]Tag, error) {
	if !o.fresh.has(occurrenceTags) {
		if err := o.hydrate(ctx, occurrenceTags); err != nil {
			return nil, err
		}
	}
	return o.tags.val, nil
}

func (o *occurrence) Acknowledges(ctx context.Context) ([]Acknowledge, error) {
	if !o.fresh.has(occurrenceAcknowledges) {
		if err := o.hydrate(ctx, occurrenceAcknowledges); err != nil {
			return nil, err
		}
	}
	return o.acks.val, nil
}

// Ack 确认/关闭/留言。成功后按 action 更新 acknowledged，并清空已缓存的确认记录。
func (o *occurrence) Ack(ctx context.Context, message string, action AckAction) error {
	params := core.Params{
		"eventids": []string{o.id},
		"action":   int(action),
	}
	if message != "" {
		params["message"] = message
	}
	if err := o.session.Call(ctx, "event.acknowledge", params, nil); err != nil {
		return err
	}
	switch {
	case action&AckAcknowledge != 0:
		o.acknowledged.set(true)
	case action&AckUnacknowledge != 0:
		o.acknowledged.set(false)
	}
	o.acks = field[[]Acknowledge]{}
	o.fresh.purge(occurrenceAcknowledges)
	log.Infow("事件已确认", "eventid", o.id, "action", int(action), "message", message)
	return nil
}

// Event 事件，恒关联一个触发器。
type Event struct {
	occurrence
}

func newEvent(s core.Session, rec core.Record, trigger *Trigger) (*Event, error) {
	id := identity(rec, "eventid")
	if id == "" {
		return nil, missingIdentity("Event", "eventid")
	}
	e := &Event{occurrence{
		session:   s,
		resource:  "event",
		ackSelect: "select_acknowledges",
		id:        id,
		trigger:   trigger,
	}}
	if err := e.merge(rec); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Event) Value(ctx context.Context) (TriggerValue, error) {
	if err := e.ensure(ctx, e.value.ok); err != nil {
		return 0, err
	}
	return e.value.val, nil
}

// REventID 恢复事件 ID，未恢复时为 "0"。
func (e *Event) REventID(ctx context.Context) (string, error) {
	if err := e.ensure(ctx, e.rEventID.ok); err != nil {
		return "", err
	}
	return e.rEventID.val, nil
}

func (e *Event) String() string {
	return fmt.Sprintf("Event(%s)", e.id)
}

// Problem 未恢复（或近期恢复）的问题，恢复事件按需解析。
type Problem struct {
	occurrence
	rEvent *Event
}

func newProblem(s core.Session, rec core.Record, trigger *Trigger) (*Problem, error) {
	id := identity(rec, "eventid")
	if id == "" {
		return nil, missingIdentity("Problem", "eventid")
	}
	p := &Problem{occurrence: occurrence{
		session:   s,
		resource:  "problem",
		ackSelect: "selectAcknowledges",
		id:        id,
		trigger:   trigger,
	}}
	if err := p.merge(rec); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Problem) REventID(ctx context.Context) (string, error) {
	if err := p.ensure(ctx, p.rEventID.ok); err != nil {
		return "", err
	}
	return p.rEventID.val, nil
}

// REvent 恢复事件，与问题共享触发器；问题尚未恢复时返回 nil。
func (p *Problem) REvent(ctx context.Context) (*Event, error) {
	if p.rEvent != nil {
		return p.rEvent, nil
	}
	rid, err := p.REventID(ctx)
	if err != nil {
		return nil, err
	}
	if rid == "" || rid == "0" {
		return nil, nil
	}
	ev, err := newEvent(p.session, core.Record{"eventid": rid}, p.trigger)
	if err != nil {
		return nil, err
	}
	p.rEvent = ev
	return ev, nil
}

func (p *Problem) String() string {
	return fmt.Sprintf("Problem(%s)", p.id)
}
