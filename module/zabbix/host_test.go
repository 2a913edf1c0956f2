package zabbix

import (
	"testing"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

var hostSelects = map[string]string{
	"selectMacros":          "macros",
	"selectInterfaces":      "interfaces",
	"selectGroups":          "groups",
	"selectParentTemplates": "parentTemplates",
	"selectInventory":       "inventory",
}

var hostScalarKeys = []string{"host", "name", "status", "proxy_hostid", "description"}

// hostGet 模拟 host.get：按 output 与 select 参数裁剪 fixture。
func hostGet(fixture map[string]any) func(core.Params) (any, error) {
	return func(p core.Params) (any, error) {
		out := map[string]any{"hostid": fixture["hostid"]}
		if p["output"] == extend {
			for _, k := range hostScalarKeys {
				if v, ok := fixture[k]; ok {
					out[k] = v
				}
			}
		}
		for sel, key := range hostSelects {
			if _, ok := p[sel]; ok {
				out[key] = fixture[key]
			}
		}
		return []any{out}, nil
	}
}

func host101() map[string]any {
	return map[string]any{
		"hostid":       "101",
		"host":         "web-01",
		"name":         "Web 01",
		"status":       "0",
		"proxy_hostid": "0",
		"description":  "nginx",
		"macros": []any{
			map[string]any{"hostmacroid": "11", "macro": "{$IS_VIP}", "value": "1"},
			map[string]any{"hostmacroid": "12", "macro": "{$IS_SVIP}", "value": "0"},
		},
		"interfaces": []any{
			map[string]any{"interfaceid": "1", "hostid": "101", "main": "0", "type": "2", "ip": "10.0.0.2", "useip": "1", "port": "161"},
			map[string]any{"interfaceid": "2", "hostid": "101", "main": "1", "type": "1", "ip": "10.0.0.1", "useip": "1", "port": "10050"},
		},
		"groups": []any{
			map[string]any{"groupid": "2", "name": "Linux servers"},
		},
		"parentTemplates": []any{
			map[string]any{"templateid": "201", "host": "Template OS Linux", "name": "Linux by Zabbix agent"},
			map[string]any{"templateid": "202", "host": "App Template OS", "name": "App"},
		},
		"inventory": map[string]any{"os": "linux"},
	}
}

func TestHostLazyFields(t *testing.T) {
	Convey("TestHostLazyFields", t, func() {
		s := newFakeSession()
		s.on("host.get", hostGet(host101()))
		f := NewHostFactory(s)
		h, err := f.Make(core.Record{"hostid": "101"})
		So(err, ShouldBeNil)

		Convey("构造时不发请求", func() {
			So(s.calls, ShouldBeEmpty)
			So(h.ID(), ShouldEqual, "101")
			So(h.String(), ShouldEqual, "Host(101)")
		})

		Convey("标量字段一次拉取后全部缓存", func() {
			status, err := h.Status(ctx)
			So(err, ShouldBeNil)
			So(status, ShouldEqual, HostMonitored)
			So(s.count("host.get"), ShouldEqual, 1)
			So(s.last("host.get")["output"], ShouldEqual, extend)

			name, _ := h.Name(ctx)
			host, _ := h.Host(ctx)
			desc, _ := h.Description(ctx)
			proxyID, _ := h.ProxyID(ctx)
			monitored, _ := h.IsMonitored(ctx)
			So(name, ShouldEqual, "Web 01")
			So(host, ShouldEqual, "web-01")
			So(desc, ShouldEqual, "nginx")
			So(proxyID, ShouldEqual, "0")
			So(monitored, ShouldBeTrue)
			So(s.count("host.get"), ShouldEqual, 1)
		})

		Convey("集合字段按组拉取且只拉一次", func() {
			macros, err := h.Macros(ctx)
			So(err, ShouldBeNil)
			So(macros, ShouldHaveLength, 2)
			p := s.last("host.get")
			So(p["selectMacros"], ShouldEqual, extend)
			So(p["output"], ShouldResemble, []string{"hostid"})

			again, _ := h.Macros(ctx)
			So(again[0], ShouldEqual, macros[0])
			So(s.count("host.get"), ShouldEqual, 1)

			hostID, _ := macros[0].HostID(ctx)
			So(hostID, ShouldEqual, "101")
			So(s.calls, ShouldHaveLength, 1)
		})

		Convey("构造时给出的字段不再拉取", func() {
			h2, _ := f.Make(core.Record{"hostid": "101", "name": "given"})
			name, err := h2.Name(ctx)
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "given")
			So(s.calls, ShouldBeEmpty)
		})

		Convey("拉取其他字段不覆盖已缓存的字段", func() {
			h2, _ := f.Make(core.Record{"hostid": "101", "name": "Local"})
			desc, err := h2.Description(ctx)
			So(err, ShouldBeNil)
			So(desc, ShouldEqual, "nginx")
			So(s.count("host.get"), ShouldEqual, 1)

			name, _ := h2.Name(ctx)
			So(name, ShouldEqual, "Local")
			host, _ := h2.Host(ctx)
			So(host, ShouldEqual, "web-01")
			So(s.count("host.get"), ShouldEqual, 1)
		})
	})
}

func TestHostNotFound(t *testing.T) {
	Convey("TestHostNotFound", t, func() {
		s := newFakeSession().reply("host.get", []any{})
		h, _ := NewHostFactory(s).Make(core.Record{"hostid": "404"})

		Convey("拉取不到时返回 ErrNotFound 且不写缓存", func() {
			_, err := h.Name(ctx)
			So(IsNotFound(err), ShouldBeTrue)

			v, err := h.Name(ctx)
			name, ok := Contain("读取主机名称失败", v, err)
			So(ok, ShouldBeFalse)
			So(name, ShouldEqual, "")
			So(s.count("host.get"), ShouldEqual, 2)
		})

		Convey("远程错误原样返回", func() {
			s.fail("host.get", remoteFailure)
			_, err := h.Macros(ctx)
			var re *core.RemoteError
			So(errors.As(err, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, -32500)
		})
	})
}

func TestHostWriteThrough(t *testing.T) {
	Convey("TestHostWriteThrough", t, func() {
		s := newFakeSession()
		s.on("host.get", hostGet(host101()))
		s.reply("host.update", map[string]any{"hostids": []string{"101"}})
		h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})

		Convey("修改监控状态：一次拉取，一次更新", func() {
			status, _ := h.Status(ctx)
			So(status, ShouldEqual, HostMonitored)

			So(h.SetStatus(ctx, HostUnmonitored), ShouldBeNil)
			So(s.count("host.update"), ShouldEqual, 1)
			So(s.last("host.update"), ShouldResemble, core.Params{"hostid": "101", "status": 1})

			status, _ = h.Status(ctx)
			So(status, ShouldEqual, HostUnmonitored)
			So(s.count("host.get"), ShouldEqual, 1)
		})

		Convey("更新失败时缓存不变", func() {
			name, _ := h.Name(ctx)
			So(name, ShouldEqual, "Web 01")

			s.fail("host.update", remoteFailure)
			err := h.SetName(ctx, "renamed")
			So(err, ShouldNotBeNil)
			So(ContainErr("修改主机名称失败", err), ShouldBeFalse)

			name, _ = h.Name(ctx)
			So(name, ShouldEqual, "Web 01")
			So(s.count("host.get"), ShouldEqual, 1)
		})

		Convey("写入后拉取标量不回退已写入的值", func() {
			So(h.SetStatus(ctx, HostUnmonitored), ShouldBeNil)
			So(s.count("host.get"), ShouldEqual, 0)

			name, err := h.Name(ctx)
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "Web 01")
			So(s.count("host.get"), ShouldEqual, 1)

			status, _ := h.Status(ctx)
			So(status, ShouldEqual, HostUnmonitored)
		})

		Convey("修改技术名称", func() {
			So(h.SetHost(ctx, "web-02"), ShouldBeNil)
			So(s.last("host.update"), ShouldResemble, core.Params{"hostid": "101", "host": "web-02"})
			host, _ := h.Host(ctx)
			So(host, ShouldEqual, "web-02")
			So(s.count("host.get"), ShouldEqual, 0)
		})

		Convey("迁移代理", func() {
			p, _ := NewProxyFactory(s).Make(core.Record{"proxyid": "9"})
			So(h.SetProxy(ctx, p), ShouldBeNil)
			So(s.last("host.update")["proxy_hostid"], ShouldEqual, "9")
			id, _ := h.ProxyID(ctx)
			So(id, ShouldEqual, "9")

			So(h.SetProxy(ctx, nil), ShouldBeNil)
			So(s.last("host.update")["proxy_hostid"], ShouldEqual, "0")
			So(s.count("host.get"), ShouldEqual, 0)
		})

		Convey("资产信息先拉取再合并提交", func() {
			So(h.SetInventory(ctx, map[string]string{"location": "dc1"}), ShouldBeNil)
			So(s.last("host.get")["selectInventory"], ShouldEqual, extend)
			So(s.last("host.update")["inventory"], ShouldResemble, map[string]string{"os": "linux", "location": "dc1"})

			inv, _ := h.Inventory(ctx)
			So(inv, ShouldResemble, map[string]string{"os": "linux", "location": "dc1"})
			inv["os"] = "changed"
			inv2, _ := h.Inventory(ctx)
			So(inv2["os"], ShouldEqual, "linux")
			So(s.count("host.get"), ShouldEqual, 1)
		})

		Convey("删除主机", func() {
			s.reply("host.delete", map[string]any{"hostids": []string{"101"}})
			So(h.Delete(ctx), ShouldBeNil)
			last := s.calls[len(s.calls)-1]
			So(last.method, ShouldEqual, "host.delete")
			So(last.params, ShouldResemble, []string{"101"})
		})
	})
}

func TestHostInventoryEmpty(t *testing.T) {
	Convey("TestHostInventoryEmpty", t, func() {
		fixture := host101()
		fixture["inventory"] = []any{}
		s := newFakeSession().on("host.get", hostGet(fixture))
		h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})

		inv, err := h.Inventory(ctx)
		So(err, ShouldBeNil)
		So(inv, ShouldBeEmpty)
	})
}

func TestHostMacros(t *testing.T) {
	Convey("TestHostMacros", t, func() {
		s := newFakeSession()
		s.on("host.get", hostGet(host101()))
		s.reply("usermacro.update", map[string]any{"hostmacroids": []string{"11"}})
		s.reply("usermacro.create", map[string]any{"hostmacroids": []string{"13"}})
		h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})

		Convey("按名称查找", func() {
			m, err := h.GetMacro(ctx, MacroVIP)
			So(err, ShouldBeNil)
			So(m.ID(), ShouldEqual, "11")
			v, _ := m.Value(ctx)
			So(v, ShouldEqual, "1")

			m, err = h.GetMacro(ctx, "{$MISSING}")
			So(err, ShouldBeNil)
			So(m, ShouldBeNil)
		})

		Convey("值相同不发请求", func() {
			m, err := h.UpdateOrCreateMacro(ctx, MacroVIP, "1")
			So(err, ShouldBeNil)
			So(m.ID(), ShouldEqual, "11")
			So(s.count("usermacro.update"), ShouldEqual, 0)
			So(s.count("usermacro.create"), ShouldEqual, 0)
		})

		Convey("已存在则更新", func() {
			m, err := h.UpdateOrCreateMacro(ctx, MacroVIP, "0")
			So(err, ShouldBeNil)
			So(s.last("usermacro.update"), ShouldResemble, core.Params{"hostmacroid": "11", "value": "0"})
			v, _ := m.Value(ctx)
			So(v, ShouldEqual, "0")

			_, _ = h.UpdateOrCreateMacro(ctx, MacroVIP, "0")
			So(s.count("usermacro.update"), ShouldEqual, 1)
		})

		Convey("不存在则创建并加入集合", func() {
			m, err := h.UpdateOrCreateMacro(ctx, "{$OWNER}", "ops")
			So(err, ShouldBeNil)
			So(m.ID(), ShouldEqual, "13")
			So(s.last("usermacro.create"), ShouldResemble, core.Params{"hostid": "101", "macro": "{$OWNER}", "value": "ops"})

			macros, _ := h.Macros(ctx)
			So(macros, ShouldHaveLength, 3)
			So(macros[2], ShouldEqual, m)

			_, _ = h.UpdateOrCreateMacro(ctx, "{$OWNER}", "ops")
			So(s.count("usermacro.create"), ShouldEqual, 1)
			So(s.count("host.get"), ShouldEqual, 1)
		})

		Convey("更新失败时宏的值不变", func() {
			s.fail("usermacro.update", remoteFailure)
			_, err := h.UpdateOrCreateMacro(ctx, MacroVIP, "0")
			So(err, ShouldNotBeNil)
			m, _ := h.GetMacro(ctx, MacroVIP)
			v, _ := m.Value(ctx)
			So(v, ShouldEqual, "1")
		})
	})
}

func TestHostVIP(t *testing.T) {
	Convey("TestHostVIP", t, func() {
		Convey("只有 VIP 宏为 1", func() {
			s := newFakeSession().on("host.get", hostGet(host101()))
			s.reply("usermacro.update", map[string]any{"hostmacroids": []string{"12"}})
			h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})

			vip, err := h.VIP(ctx)
			So(err, ShouldBeNil)
			So(vip, ShouldEqual, VIPBasic)

			Convey("结果被缓存，宏变化后不重新计算", func() {
				_, err := h.UpdateOrCreateMacro(ctx, MacroSVIP, "1")
				So(err, ShouldBeNil)
				vip, _ := h.VIP(ctx)
				So(vip, ShouldEqual, VIPBasic)
			})
		})

		Convey("SVIP 优先于 VIP", func() {
			fixture := host101()
			fixture["macros"] = []any{
				map[string]any{"hostmacroid": "11", "macro": "{$IS_VIP}", "value": "1"},
				map[string]any{"hostmacroid": "12", "macro": "{$IS_SVIP}", "value": "1"},
			}
			s := newFakeSession().on("host.get", hostGet(fixture))
			h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})
			vip, _ := h.VIP(ctx)
			So(vip, ShouldEqual, VIPSuper)
		})

		Convey("没有相关宏", func() {
			fixture := host101()
			fixture["macros"] = []any{}
			s := newFakeSession().on("host.get", hostGet(fixture))
			h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})
			vip, _ := h.VIP(ctx)
			So(vip, ShouldEqual, VIPNone)
		})
	})
}

func TestHostInterfaces(t *testing.T) {
	Convey("TestHostInterfaces", t, func() {
		Convey("按 main 标记选择接口", func() {
			s := newFakeSession().on("host.get", hostGet(host101()))
			h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})

			main, err := h.MainInterface(ctx)
			So(err, ShouldBeNil)
			So(main.ID(), ShouldEqual, "2")
			typ, _ := main.Type(ctx)
			So(typ, ShouldEqual, InterfaceAgent)
			So(typ.String(), ShouldEqual, "agent")

			ip, _ := h.IP(ctx)
			So(ip, ShouldEqual, "10.0.0.1")
			So(s.count("host.get"), ShouldEqual, 1)
		})

		Convey("没有 main 接口", func() {
			fixture := host101()
			fixture["interfaces"] = []any{
				map[string]any{"interfaceid": "1", "main": "0", "ip": "10.0.0.2"},
			}
			s := newFakeSession().on("host.get", hostGet(fixture))
			h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})

			_, err := h.IP(ctx)
			So(IsNotFound(err), ShouldBeTrue)
		})
	})
}

func TestHostTemplates(t *testing.T) {
	Convey("TestHostTemplates", t, func() {
		s := newFakeSession().on("host.get", hostGet(host101()))
		s.reply("host.update", map[string]any{"hostids": []string{"101"}})
		h, _ := NewHostFactory(s).Make(core.Record{"hostid": "101"})

		Convey("按前缀匹配模板技术名称", func() {
			found, err := h.FindParentTemplates(ctx, "Template OS")
			So(err, ShouldBeNil)
			So(found, ShouldHaveLength, 1)
			So(found[0].ID(), ShouldEqual, "201")

			_, err = h.FindParentTemplates(ctx, "(")
			So(err, ShouldNotBeNil)
		})

		Convey("已链接的模板不再提交", func() {
			tpl, _ := NewTemplateFactory(s).Make(core.Record{"templateid": "201"})
			So(h.LinkTemplate(ctx, tpl), ShouldBeNil)
			So(s.count("host.update"), ShouldEqual, 0)
		})

		Convey("链接新模板时保留已有模板", func() {
			tpl, _ := NewTemplateFactory(s).Make(core.Record{"templateid": "301", "host": "Template DB"})
			So(h.LinkTemplate(ctx, tpl), ShouldBeNil)
			So(s.last("host.update"), ShouldResemble, core.Params{
				"hostid": "101",
				"templates": []core.Params{
					{"templateid": "201"},
					{"templateid": "202"},
					{"templateid": "301"},
				},
			})

			templates, _ := h.ParentTemplates(ctx)
			So(templates, ShouldHaveLength, 3)
			So(templates[2], ShouldEqual, tpl)
			So(s.count("host.get"), ShouldEqual, 1)
		})

		Convey("主机组", func() {
			groups, err := h.Groups(ctx)
			So(err, ShouldBeNil)
			So(groups, ShouldHaveLength, 1)
			name, _ := groups[0].Name(ctx)
			So(name, ShouldEqual, "Linux servers")
			So(s.count("host.get"), ShouldEqual, 1)
		})
	})
}
