package zabbix

import (
	"context"
	"fmt"
	"regexp"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"github.com/pkg/errors"
)

type HostStatus int

const (
	HostMonitored   HostStatus = 0
	HostUnmonitored HostStatus = 1
)

// VIPClass 由主机宏 {$IS_SVIP} / {$IS_VIP} 推导出的重要性等级。
type VIPClass string

const (
	VIPNone  VIPClass = ""
	VIPSuper VIPClass = "SVIP"
	VIPBasic VIPClass = "VIP"
)

const (
	MacroSVIP = "{$IS_SVIP}"
	MacroVIP  = "{$IS_VIP}"
)

const (
	hostScalars fieldGroup = 1 << iota
	hostMacros
	hostInterfaces
	hostGroups
	hostTemplates
	hostInventory
)

type hostRecord struct {
	Host            *string        `mapstructure:"host"`
	Name            *string        `mapstructure:"name"`
	Status          *int           `mapstructure:"status"`
	ProxyHostID     *string        `mapstructure:"proxy_hostid"`
	Description     *string        `mapstructure:"description"`
	Macros          *[]core.Record `mapstructure:"macros"`
	Interfaces      *[]core.Record `mapstructure:"interfaces"`
	Groups          *[]core.Record `mapstructure:"groups"`
	ParentTemplates *[]core.Record `mapstructure:"parentTemplates"`
	Inventory       any            `mapstructure:"inventory"`
}

// Host 主机。字段按需从远程拉取并缓存，关联集合首次访问时构造。
type Host struct {
	session core.Session
	id      string
	fresh   freshness

	host        field[string]
	name        field[string]
	status      field[HostStatus]
	proxyID     field[string]
	description field[string]
	inventory   field[map[string]string]
	vip         field[VIPClass]

	rawMacros     field[[]core.Record]
	rawInterfaces field[[]core.Record]
	rawGroups     field[[]core.Record]
	rawTemplates  field[[]core.Record]

	macros     []*Macro
	interfaces []*Interface
	groups     []*Group
	templates  []*Template
}

func newHost(s core.Session, rec core.Record) (*Host, error) {
	id := identity(rec, "hostid")
	if id == "" {
		return nil, missingIdentity("Host", "hostid")
	}
	h := &Host{session: s, id: id}
	if err := h.merge(rec); err != nil {
		return nil, err
	}
	return h, nil
}

// merge 只填充本地尚未缓存的字段，集合字段随之标记为已拉取。
func (h *Host) merge(rec core.Record) error {
	var r hostRecord
	if err := decodeRecord(rec, &r); err != nil {
		return err
	}
	h.host.merge(r.Host)
	h.name.merge(r.Name)
	if r.Status != nil {
		h.status.fill(HostStatus(*r.Status))
	}
	h.proxyID.merge(r.ProxyHostID)
	h.description.merge(r.Description)
	if r.Macros != nil {
		h.rawMacros.fill(*r.Macros)
		h.fresh.mark(hostMacros)
	}
	if r.Interfaces != nil {
		h.rawInterfaces.fill(*r.Interfaces)
		h.fresh.mark(hostInterfaces)
	}
	if r.Groups != nil {
		h.rawGroups.fill(*r.Groups)
		h.fresh.mark(hostGroups)
	}
	if r.ParentTemplates != nil {
		h.rawTemplates.fill(*r.ParentTemplates)
		h.fresh.mark(hostTemplates)
	}
	if _, ok := rec["inventory"]; ok {
		h.inventory.fill(stringMap(r.Inventory))
		h.fresh.mark(hostInventory)
	}
	return nil
}

var hostGroupSelect = map[fieldGroup]string{
	hostMacros:     "selectMacros",
	hostInterfaces: "selectInterfaces",
	hostGroups:     "selectGroups",
	hostTemplates:  "selectParentTemplates",
	hostInventory:  "selectInventory",
}

// hydrate 针对一个字段组发起一次 host.get。
func (h *Host) hydrate(ctx context.Context, g fieldGroup) error {
	params := core.Params{"hostids": []string{h.id}}
	if sel, ok := hostGroupSelect[g]; ok {
		params["output"] = []string{"hostid"}
		params[sel] = extend
	} else {
		params["output"] = extend
	}

	rec, err := fetchOne(ctx, h.session, "host.get", params, "hostid", h.id)
	if err != nil {
		return err
	}
	if err := h.merge(rec); err != nil {
		return err
	}
	h.fresh.mark(g)
	return nil
}

func (h *Host) ensure(ctx context.Context, present bool) error {
	if present || h.fresh.has(hostScalars) {
		return nil
	}
	return h.hydrate(ctx, hostScalars)
}

func (h *Host) ensureGroup(ctx context.Context, g fieldGroup) error {
	if h.fresh.has(g) {
		return nil
	}
	return h.hydrate(ctx, g)
}

func (h *Host) update(ctx context.Context, params core.Params) error {
	params["hostid"] = h.id
	return h.session.Call(ctx, "host.update", params, nil)
}

func (h *Host) ID() string {
	return h.id
}

// Host 技术名称。
func (h *Host) Host(ctx context.Context) (string, error) {
	if err := h.ensure(ctx, h.host.ok); err != nil {
		return "", err
	}
	return h.host.val, nil
}

// Name 可见名称。
func (h *Host) Name(ctx context.Context) (string, error) {
	if err := h.ensure(ctx, h.name.ok); err != nil {
		return "", err
	}
	return h.name.val, nil
}

func (h *Host) Status(ctx context.Context) (HostStatus, error) {
	if err := h.ensure(ctx, h.status.ok); err != nil {
		return 0, err
	}
	return h.status.val, nil
}

func (h *Host) IsMonitored(ctx context.Context) (bool, error) {
	status, err := h.Status(ctx)
	if err != nil {
		return false, err
	}
	return status == HostMonitored, nil
}

// ProxyID 未经代理监控时为 "0"。
func (h *Host) ProxyID(ctx context.Context) (string, error) {
	if err := h.ensure(ctx, h.proxyID.ok); err != nil {
		return "", err
	}
	return h.proxyID.val, nil
}

func (h *Host) Description(ctx context.Context) (string, error) {
	if err := h.ensure(ctx, h.description.ok); err != nil {
		return "", err
	}
	return h.description.val, nil
}

// Inventory 返回资产信息的副本。
func (h *Host) Inventory(ctx context.Context) (map[string]string, error) {
	if err := h.ensureGroup(ctx, hostInventory); err != nil {
		return nil, err
	}
	return copyMap(h.inventory.val), nil
}

func (h *Host) SetHost(ctx context.Context, host string) error {
	if err := h.update(ctx, core.Params{"host": host}); err != nil {
		return err
	}
	old := h.host.val
	h.host.set(host)
	log.Infow("主机技术名称已修改", "hostid", h.id, "old", old, "new", host)
	return nil
}

func (h *Host) SetName(ctx context.Context, name string) error {
	if err := h.update(ctx, core.Params{"name": name}); err != nil {
		return err
	}
	old := h.name.val
	h.name.set(name)
	log.Infow("主机名称已修改", "hostid", h.id, "old", old, "new", name)
	return nil
}

func (h *Host) SetStatus(ctx context.Context, status HostStatus) error {
	if err := h.update(ctx, core.Params{"status": int(status)}); err != nil {
		return err
	}
	h.status.set(status)
	log.Infow("主机监控状态已修改", "hostid", h.id, "status", int(status))
	return nil
}

// SetProxy 将主机迁移到代理 p，p 为 nil 时改为由服务端直接监控。
func (h *Host) SetProxy(ctx context.Context, p *Proxy) error {
	proxyID := "0"
	if p != nil {
		proxyID = p.ID()
	}
	if err := h.update(ctx, core.Params{"proxy_hostid": proxyID}); err != nil {
		return err
	}
	old := h.proxyID.val
	h.proxyID.set(proxyID)
	log.Infow("主机已迁移到代理", "hostid", h.id, "old", old, "new", proxyID)
	return nil
}

// SetInventory 先拉取现有资产信息，合并 fields 后整体提交。
func (h *Host) SetInventory(ctx context.Context, fields map[string]string) error {
	if err := h.ensureGroup(ctx, hostInventory); err != nil {
		return err
	}
	merged := copyMap(h.inventory.val)
	for k, v := range fields {
		merged[k] = v
	}
	if err := h.update(ctx, core.Params{"inventory": merged}); err != nil {
		return err
	}
	h.inventory.set(merged)
	log.Infow("主机资产信息已修改", "hostid", h.id, "fields", fields)
	return nil
}

func (h *Host) Macros(ctx context.Context) ([]*Macro, error) {
	if err := h.ensureGroup(ctx, hostMacros); err != nil {
		return nil, err
	}
	macros, err := materialize(h.macros, h.rawMacros.val, func(rec core.Record) (*Macro, error) {
		if _, ok := rec["hostid"]; !ok {
			rec["hostid"] = h.id
		}
		return newMacro(h.session, rec)
	})
	if err != nil {
		return nil, err
	}
	h.macros = macros
	return macros, nil
}

// GetMacro 返回名称完全匹配的第一个宏，不存在时返回 nil。
func (h *Host) GetMacro(ctx context.Context, name string) (*Macro, error) {
	macros, err := h.Macros(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range macros {
		n, err := m.Name(ctx)
		if err != nil {
			return nil, err
		}
		if n == name {
			return m, nil
		}
	}
	return nil, nil
}

// UpdateOrCreateMacro 幂等写入：值相同不发请求，存在则更新，不存在则创建。
func (h *Host) UpdateOrCreateMacro(ctx context.Context, name, value string) (*Macro, error) {
	m, err := h.GetMacro(ctx, name)
	if err != nil {
		return nil, err
	}
	if m != nil {
		cur, err := m.Value(ctx)
		if err != nil {
			return nil, err
		}
		if cur == value {
			return m, nil
		}
		if err := m.SetValue(ctx, value); err != nil {
			return nil, err
		}
		return m, nil
	}

	m, err = createMacro(ctx, h.session, h.id, name, value)
	if err != nil {
		return nil, err
	}
	h.rawMacros.set(append(h.rawMacros.val, core.Record{
		"hostmacroid": m.ID(),
		"hostid":      h.id,
		"macro":       name,
		"value":       value,
	}))
	h.macros = append(h.macros, m)
	return m, nil
}

// VIP 首次成功计算后缓存，之后宏的变化不再影响结果。
func (h *Host) VIP(ctx context.Context) (VIPClass, error) {
	if h.vip.ok {
		return h.vip.val, nil
	}

	class := VIPNone
	for _, candidate := range []struct {
		macro string
		class VIPClass
	}{{MacroSVIP, VIPSuper}, {MacroVIP, VIPBasic}} {
		m, err := h.GetMacro(ctx, candidate.macro)
		if err != nil {
			return VIPNone, err
		}
		if m == nil {
			continue
		}
		v, err := m.Value(ctx)
		if err != nil {
			return VIPNone, err
		}
		if v == "1" {
			class = candidate.class
			break
		}
	}
	h.vip.set(class)
	return class, nil
}

func (h *Host) Interfaces(ctx context.Context) ([]*Interface, error) {
	if err := h.ensureGroup(ctx, hostInterfaces); err != nil {
		return nil, err
	}
	interfaces, err := materialize(h.interfaces, h.rawInterfaces.val, func(rec core.Record) (*Interface, error) {
		return newInterface(h.session, rec)
	})
	if err != nil {
		return nil, err
	}
	h.interfaces = interfaces
	return interfaces, nil
}

// MainInterface 返回 main 标记的接口，与接口顺序无关。
func (h *Host) MainInterface(ctx context.Context) (*Interface, error) {
	interfaces, err := h.Interfaces(ctx)
	if err != nil {
		return nil, err
	}
	for _, i := range interfaces {
		main, err := i.Main(ctx)
		if err != nil {
			return nil, err
		}
		if main {
			return i, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "host %s 没有 main 接口", h.id)
}

// IP main 接口的 IP。
func (h *Host) IP(ctx context.Context) (string, error) {
	i, err := h.MainInterface(ctx)
	if err != nil {
		return "", err
	}
	return i.IP(ctx)
}

func (h *Host) Groups(ctx context.Context) ([]*Group, error) {
	if err := h.ensureGroup(ctx, hostGroups); err != nil {
		return nil, err
	}
	groups, err := materialize(h.groups, h.rawGroups.val, func(rec core.Record) (*Group, error) {
		return newGroup(h.session, rec)
	})
	if err != nil {
		return nil, err
	}
	h.groups = groups
	return groups, nil
}

func (h *Host) ParentTemplates(ctx context.Context) ([]*Template, error) {
	if err := h.ensureGroup(ctx, hostTemplates); err != nil {
		return nil, err
	}
	templates, err := materialize(h.templates, h.rawTemplates.val, func(rec core.Record) (*Template, error) {
		return newTemplate(h.session, rec)
	})
	if err != nil {
		return nil, err
	}
	h.templates = templates
	return templates, nil
}

// FindParentTemplates 返回技术名称从开头匹配 pattern 的已链接模板。
func (h *Host) FindParentTemplates(ctx context.Context, pattern string) ([]*Template, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, errors.Wrapf(err, "模板匹配表达式不合法: %s", pattern)
	}
	templates, err := h.ParentTemplates(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Template
	for _, t := range templates {
		name, err := t.Host(ctx)
		if err != nil {
			return nil, err
		}
		if re.MatchString(name) {
			out = append(out, t)
		}
	}
	return out, nil
}

// LinkTemplate 在保留现有链接的前提下追加模板，已链接时不发请求。
func (h *Host) LinkTemplate(ctx context.Context, t *Template) error {
	templates, err := h.ParentTemplates(ctx)
	if err != nil {
		return err
	}
	ids := make([]core.Params, 0, len(templates)+1)
	for _, cur := range templates {
		if cur.ID() == t.ID() {
			return nil
		}
		ids = append(ids, core.Params{"templateid": cur.ID()})
	}
	ids = append(ids, core.Params{"templateid": t.ID()})

	if err := h.update(ctx, core.Params{"templates": ids}); err != nil {
		return err
	}
	rec := core.Record{"templateid": t.ID()}
	if t.host.ok {
		rec["host"] = t.host.val
	}
	if t.name.ok {
		rec["name"] = t.name.val
	}
	h.rawTemplates.set(append(h.rawTemplates.val, rec))
	h.templates = append(h.templates, t)
	log.Infow("主机已链接模板", "hostid", h.id, "templateid", t.ID())
	return nil
}

// Delete 删除远程主机，本地对象之后不应再使用。
func (h *Host) Delete(ctx context.Context) error {
	if err := h.session.Call(ctx, "host.delete", []string{h.id}, nil); err != nil {
		return err
	}
	log.Infow("主机已删除", "hostid", h.id, "host", h.host.val)
	return nil
}

func (h *Host) String() string {
	return fmt.Sprintf("Host(%s)", h.id)
}
