package zabbix

import (
	"testing"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

func freezeNow() func() {
	old := nowFunc
	nowFunc = func() time.Time { return fixedNow }
	return func() { nowFunc = old }
}

// triggerGet 模拟 trigger.get，triggers 以 triggerid 为键。
func triggerGet(triggers map[string]map[string]any) func(core.Params) (any, error) {
	return func(p core.Params) (any, error) {
		var out []any
		ids, _ := p["triggerids"].([]string)
		for _, id := range ids {
			t, ok := triggers[id]
			if !ok {
				continue
			}
			rec := map[string]any{"triggerid": id}
			if p["output"] == extend {
				for k, v := range t {
					if k != "hosts" && k != "dependencies" {
						rec[k] = v
					}
				}
			}
			if _, ok := p["selectHosts"]; ok {
				rec["hosts"] = t["hosts"]
			}
			if _, ok := p["selectDependencies"]; ok {
				rec["dependencies"] = t["dependencies"]
			}
			out = append(out, rec)
		}
		return out, nil
	}
}

func triggerFixtures() map[string]map[string]any {
	return map[string]map[string]any{
		"500": {
			"description":  "CPU high on web-01",
			"priority":     "4",
			"value":        "1",
			"hosts":        []any{map[string]any{"hostid": "101", "host": "web-01"}},
			"dependencies": []any{map[string]any{"triggerid": "501", "description": "agent down"}},
		},
		"600": {
			"description": "orphan",
			"hosts":       []any{},
		},
	}
}

func TestTriggerFactory(t *testing.T) {
	Convey("TestTriggerFactory", t, func() {
		s := newFakeSession().on("trigger.get", triggerGet(triggerFixtures()))
		f := NewTriggerFactory(s)

		Convey("Make 通过一次 selectHosts 解析主机", func() {
			tr, err := f.Make(ctx, core.Record{"triggerid": "500", "description": "given"})
			So(err, ShouldBeNil)
			So(s.count("trigger.get"), ShouldEqual, 1)
			So(s.last("trigger.get")["selectHosts"], ShouldEqual, extend)

			h, err := tr.Host(ctx)
			So(err, ShouldBeNil)
			So(h.ID(), ShouldEqual, "101")
			desc, _ := tr.Description(ctx)
			So(desc, ShouldEqual, "given")
			So(s.calls, ShouldHaveLength, 1)
			So(tr.String(), ShouldEqual, "Trigger(500)")
		})

		Convey("没有主机的触发器视为不存在", func() {
			_, err := f.Make(ctx, core.Record{"triggerid": "600"})
			So(IsNotFound(err), ShouldBeTrue)

			_, err = f.Make(ctx, core.Record{"triggerid": "404"})
			So(IsNotFound(err), ShouldBeTrue)
		})

		Convey("缺少标识时不发请求", func() {
			_, err := f.Make(ctx, core.Record{"description": "x"})
			So(errors.Is(err, ErrMissingIdentity), ShouldBeTrue)
			So(s.calls, ShouldBeEmpty)
		})

		Convey("GetByID 一次取回触发器与主机", func() {
			tr, err := f.GetByID(ctx, "500")
			So(err, ShouldBeNil)
			prio, _ := tr.Priority(ctx)
			value, _ := tr.Value(ctx)
			So(prio, ShouldEqual, 4)
			So(value, ShouldEqual, TriggerProblem)
			_, _ = tr.Host(ctx)
			So(s.calls, ShouldHaveLength, 1)
		})

		Convey("GetByFilter 跳过已不存在的触发器", func() {
			s.on("trigger.get", func(p core.Params) (any, error) {
				if _, ok := p["filter"]; ok {
					return []any{
						map[string]any{"triggerid": "500"},
						map[string]any{"triggerid": "600"},
					}, nil
				}
				return triggerGet(triggerFixtures())(p)
			})
			cur, err := f.GetByFilter(ctx, core.Params{"value": 1})
			So(err, ShouldBeNil)
			So(cur.Total(), ShouldEqual, 2)
			triggers, err := cur.All(ctx)
			So(err, ShouldBeNil)
			So(triggers, ShouldHaveLength, 1)
			So(triggers[0].ID(), ShouldEqual, "500")
		})

		Convey("GetByName 与 Search 仍解析主机", func() {
			s.on("trigger.get", func(p core.Params) (any, error) {
				_, byFilter := p["filter"]
				_, bySearch := p["search"]
				if byFilter || bySearch {
					return []any{map[string]any{"triggerid": "500", "description": "CPU high on web-01"}}, nil
				}
				return triggerGet(triggerFixtures())(p)
			})

			cur, err := f.GetByName(ctx, "CPU high on web-01")
			So(err, ShouldBeNil)
			So(s.last("trigger.get")["filter"], ShouldResemble, core.Params{"description": "CPU high on web-01"})
			triggers, err := cur.All(ctx)
			So(err, ShouldBeNil)
			So(triggers, ShouldHaveLength, 1)
			h, _ := triggers[0].Host(ctx)
			So(h.ID(), ShouldEqual, "101")
			So(s.count("trigger.get"), ShouldEqual, 2)

			cur, err = f.Search(ctx, core.Params{"description": "CPU*"}, core.Params{"limit": 10})
			So(err, ShouldBeNil)
			p := s.last("trigger.get")
			So(p["search"], ShouldResemble, core.Params{"description": "CPU*"})
			So(p["searchWildcardsEnabled"], ShouldEqual, true)
			So(p["limit"], ShouldEqual, 10)
			triggers, err = cur.All(ctx)
			So(err, ShouldBeNil)
			So(triggers, ShouldHaveLength, 1)
			So(s.count("trigger.get"), ShouldEqual, 4)
		})

		Convey("GetByHost 直接关联已知主机", func() {
			h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})
			s.reply("trigger.get", []any{
				map[string]any{"triggerid": "500"},
				map[string]any{"triggerid": "502"},
			})
			cur, err := f.GetByHost(ctx, h, nil)
			So(err, ShouldBeNil)
			So(s.last("trigger.get")["hostids"], ShouldResemble, []string{"101"})

			triggers, _ := cur.All(ctx)
			So(triggers, ShouldHaveLength, 2)
			got, _ := triggers[1].Host(ctx)
			So(got, ShouldEqual, h)
			So(s.calls, ShouldHaveLength, 1)
		})
	})
}

func TestTriggerLazyHost(t *testing.T) {
	Convey("TestTriggerLazyHost", t, func() {
		s := newFakeSession().on("trigger.get", triggerGet(triggerFixtures()))
		tr, err := newTrigger(s, core.Record{"triggerid": "500"}, nil)
		So(err, ShouldBeNil)
		So(s.calls, ShouldBeEmpty)

		h, err := tr.Host(ctx)
		So(err, ShouldBeNil)
		So(h.ID(), ShouldEqual, "101")
		again, _ := tr.Host(ctx)
		So(again, ShouldEqual, h)
		So(s.count("trigger.get"), ShouldEqual, 1)
	})
}

func TestTriggerDependencies(t *testing.T) {
	Convey("TestTriggerDependencies", t, func() {
		s := newFakeSession().on("trigger.get", triggerGet(triggerFixtures()))
		s.reply("trigger.adddependencies", map[string]any{"triggerids": []string{"500"}})
		s.reply("trigger.deletedependencies", map[string]any{"triggerids": []string{"500"}})
		tr, _ := NewTriggerFactory(s).GetByID(ctx, "500")
		s.reset()

		deps, err := tr.Dependencies(ctx)
		So(err, ShouldBeNil)
		So(deps, ShouldHaveLength, 1)
		So(deps[0].ID(), ShouldEqual, "501")
		_, _ = tr.Dependencies(ctx)
		So(s.count("trigger.get"), ShouldEqual, 1)

		Convey("添加依赖后重新拉取", func() {
			dep, _ := newTrigger(s, core.Record{"triggerid": "502"}, nil)
			So(tr.AddDependency(ctx, dep), ShouldBeNil)
			So(s.last("trigger.adddependencies"), ShouldResemble, core.Params{"triggerid": "500", "dependsOnTriggerid": "502"})

			_, _ = tr.Dependencies(ctx)
			So(s.count("trigger.get"), ShouldEqual, 2)
		})

		Convey("删除依赖后重新拉取", func() {
			So(tr.DeleteDependencies(ctx), ShouldBeNil)
			last := s.calls[len(s.calls)-1]
			So(last.params, ShouldResemble, []core.Params{{"triggerid": "500"}})

			_, _ = tr.Dependencies(ctx)
			So(s.count("trigger.get"), ShouldEqual, 2)
		})

		Convey("写失败时缓存保留", func() {
			s.fail("trigger.deletedependencies", remoteFailure)
			So(tr.DeleteDependencies(ctx), ShouldNotBeNil)
			_, _ = tr.Dependencies(ctx)
			So(s.count("trigger.get"), ShouldEqual, 1)
		})
	})
}

func TestTriggerEvents(t *testing.T) {
	Convey("TestTriggerEvents", t, func() {
		defer freezeNow()()
		s := newFakeSession()
		s.reply("event.get", []any{
			map[string]any{
				"eventid": "9002",
				"clock":   "1700000100",
				"value":   "1",
				"acknowledges": []any{
					map[string]any{"acknowledgeid": "1", "message": "TICKET-2", "clock": "1700000200"},
					map[string]any{"acknowledgeid": "2", "message": ""},
				},
			},
			map[string]any{
				"eventid":      "9001",
				"clock":        "1700000000",
				"value":        "1",
				"acknowledges": []any{map[string]any{"acknowledgeid": "3", "message": "TICKET-1"}},
			},
		})
		tr, _ := newTrigger(s, core.Record{"triggerid": "500"}, nil)

		Convey("最近事件直接关联当前触发器", func() {
			cur, err := tr.LastEvents(ctx, EventQuery{})
			So(err, ShouldBeNil)
			p := s.last("event.get")
			So(p["objectids"], ShouldResemble, []string{"500"})
			So(p["time_from"], ShouldEqual, fixedNow.Add(-time.Hour).Unix())
			So(p["limit"], ShouldEqual, 10)
			_, hasAck := p["acknowledged"]
			So(hasAck, ShouldBeFalse)

			events, err := cur.All(ctx)
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 2)
			So(events[0].Trigger(), ShouldEqual, tr)
			clock, _ := events[0].Clock(ctx)
			So(clock.Unix(), ShouldEqual, 1700000100)
			So(s.calls, ShouldHaveLength, 1)
		})

		Convey("工单号取自已确认问题事件的确认消息", func() {
			keys, err := tr.LastTicketKeys(ctx)
			So(err, ShouldBeNil)
			So(keys, ShouldResemble, []string{"TICKET-2", "TICKET-1"})
			p := s.last("event.get")
			So(p["acknowledged"], ShouldEqual, true)
			So(p["value"], ShouldEqual, 1)
			So(s.calls, ShouldHaveLength, 1)
		})
	})
}
