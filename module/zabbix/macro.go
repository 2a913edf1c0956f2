package zabbix

import (
	"context"
	"fmt"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
)

const macroScalars fieldGroup = 1

type macroRecord struct {
	HostID      *string `mapstructure:"hostid"`
	Macro       *string `mapstructure:"macro"`
	Value       *string `mapstructure:"value"`
	Description *string `mapstructure:"description"`
}

// Macro 主机级用户宏。
type Macro struct {
	session     core.Session
	id          string
	fresh       freshness
	hostID      field[string]
	name        field[string]
	value       field[string]
	description field[string]
}

func newMacro(s core.Session, rec core.Record) (*Macro, error) {
	id := identity(rec, "hostmacroid")
	if id == "" {
		return nil, missingIdentity("Macro", "hostmacroid")
	}
	m := &Macro{session: s, id: id}
	if err := m.merge(rec); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Macro) merge(rec core.Record) error {
	var r macroRecord
	if err := decodeRecord(rec, &r); err != nil {
		return err
	}
	m.hostID.merge(r.HostID)
	m.name.merge(r.Macro)
	m.value.merge(r.Value)
	m.description.merge(r.Description)
	return nil
}

func (m *Macro) ensure(ctx context.Context, present bool) error {
	if present || m.fresh.has(macroScalars) {
		return nil
	}
	rec, err := fetchOne(ctx, m.session, "usermacro.get", core.Params{
		"output":       extend,
		"hostmacroids": []string{m.id},
	}, "hostmacroid", m.id)
	if err != nil {
		return err
	}
	if err := m.merge(rec); err != nil {
		return err
	}
	m.fresh.mark(macroScalars)
	return nil
}

func (m *Macro) ID() string {
	return m.id
}

func (m *Macro) HostID(ctx context.Context) (string, error) {
	if err := m.ensure(ctx, m.hostID.ok); err != nil {
		return "", err
	}
	return m.hostID.val, nil
}

// Name 宏名称，例如 {$IS_VIP}。
func (m *Macro) Name(ctx context.Context) (string, error) {
	if err := m.ensure(ctx, m.name.ok); err != nil {
		return "", err
	}
	return m.name.val, nil
}

func (m *Macro) Value(ctx context.Context) (string, error) {
	if err := m.ensure(ctx, m.value.ok); err != nil {
		return "", err
	}
	return m.value.val, nil
}

func (m *Macro) Description(ctx context.Context) (string, error) {
	if err := m.ensure(ctx, m.description.ok); err != nil {
		return "", err
	}
	return m.description.val, nil
}

func (m *Macro) update(ctx context.Context, params core.Params) error {
	params["hostmacroid"] = m.id
	return m.session.Call(ctx, "usermacro.update", params, nil)
}

func (m *Macro) SetName(ctx context.Context, name string) error {
	if err := m.update(ctx, core.Params{"macro": name}); err != nil {
		return err
	}
	old := m.name.val
	m.name.set(name)
	log.Infow("宏名称已修改", "hostmacroid", m.id, "hostid", m.hostID.val, "old", old, "new", name)
	return nil
}

func (m *Macro) SetValue(ctx context.Context, value string) error {
	if err := m.update(ctx, core.Params{"value": value}); err != nil {
		return err
	}
	old := m.value.val
	m.value.set(value)
	log.Infow("宏的值已修改", "hostmacroid", m.id, "hostid", m.hostID.val, "macro", m.name.val, "old", old, "new", value)
	return nil
}

func (m *Macro) String() string {
	return fmt.Sprintf("Macro(%s)", m.id)
}

func createMacro(ctx context.Context, s core.Session, hostID, name, value string) (*Macro, error) {
	id, err := createdID(ctx, s, "usermacro.create", core.Params{
		"hostid": hostID,
		"macro":  name,
		"value":  value,
	}, "hostmacroids")
	if err != nil {
		return nil, err
	}
	log.Infow("宏已创建", "hostmacroid", id, "hostid", hostID, "macro", name, "value", value)
	return newMacro(s, core.Record{
		"hostmacroid": id,
		"hostid":      hostID,
		"macro":       name,
		"value":       value,
	})
}

// MacroFactory 用户宏工厂。
type MacroFactory struct {
	session core.Session
}

func NewMacroFactory(s core.Session) *MacroFactory {
	return &MacroFactory{session: s}
}

func (f *MacroFactory) Make(rec core.Record) (*Macro, error) {
	return newMacro(f.session, rec)
}

func (f *MacroFactory) build(_ context.Context, rec core.Record) (*Macro, error) {
	return f.Make(rec)
}

func (f *MacroFactory) GetByID(ctx context.Context, id string) (*Macro, error) {
	rec, err := fetchOne(ctx, f.session, "usermacro.get", core.Params{
		"output":       extend,
		"hostmacroids": []string{id},
	}, "hostmacroid", id)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}

func (f *MacroFactory) GetByFilter(ctx context.Context, filter core.Params) (*Cursor[*Macro], error) {
	records, err := fetchAll(ctx, f.session, "usermacro.get", core.Params{
		"output": extend,
		"filter": filter,
	})
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.build), nil
}

// GetByMacro 按宏名称与值精确查找，用于反查哪些主机设置了某个宏。
func (f *MacroFactory) GetByMacro(ctx context.Context, name, value string) (*Cursor[*Macro], error) {
	return f.GetByFilter(ctx, core.Params{"macro": name, "value": value})
}

func (f *MacroFactory) Create(ctx context.Context, hostID, name, value string) (*Macro, error) {
	return createMacro(ctx, f.session, hostID, name, value)
}
