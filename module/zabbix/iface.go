package zabbix

import (
	"context"
	"fmt"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
)

// InterfaceType 主机接口类型。
type InterfaceType int

const (
	InterfaceAgent InterfaceType = 1
	InterfaceSNMP  InterfaceType = 2
	InterfaceIPMI  InterfaceType = 3
	InterfaceJMX   InterfaceType = 4
)

func (t InterfaceType) String() string {
	switch t {
	case InterfaceAgent:
		return "agent"
	case InterfaceSNMP:
		return "SNMP"
	case InterfaceIPMI:
		return "IPMI"
	case InterfaceJMX:
		return "JMX"
	}
	return fmt.Sprintf("InterfaceType(%d)", int(t))
}

const interfaceScalars fieldGroup = 1

type interfaceRecord struct {
	HostID *string `mapstructure:"hostid"`
	DNS    *string `mapstructure:"dns"`
	IP     *string `mapstructure:"ip"`
	Port   *string `mapstructure:"port"`
	Type   *int    `mapstructure:"type"`
	Main   *int    `mapstructure:"main"`
	UseIP  *int    `mapstructure:"useip"`
}

// Interface 主机接口。每台主机恰有一个 main 接口。
type Interface struct {
	session core.Session
	id      string
	fresh   freshness
	hostID  field[string]
	dns     field[string]
	ip      field[string]
	port    field[string]
	typ     field[InterfaceType]
	main    field[bool]
	useIP   field[bool]
}

func newInterface(s core.Session, rec core.Record) (*Interface, error) {
	id := identity(rec, "interfaceid")
	if id == "" {
		return nil, missingIdentity("Interface", "interfaceid")
	}
	i := &Interface{session: s, id: id}
	if err := i.merge(rec); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Interface) merge(rec core.Record) error {
	var r interfaceRecord
	if err := decodeRecord(rec, &r); err != nil {
		return err
	}
	i.hostID.merge(r.HostID)
	i.dns.merge(r.DNS)
	i.ip.merge(r.IP)
	i.port.merge(r.Port)
	if r.Type != nil {
		i.typ.fill(InterfaceType(*r.Type))
	}
	i.main.merge(flag(r.Main))
	i.useIP.merge(flag(r.UseIP))
	return nil
}

func (i *Interface) ensure(ctx context.Context, present bool) error {
	if present || i.fresh.has(interfaceScalars) {
		return nil
	}
	rec, err := fetchOne(ctx, i.session, "hostinterface.get", core.Params{
		"output":       extend,
		"interfaceids": []string{i.id},
	}, "interfaceid", i.id)
	if err != nil {
		return err
	}
	if err := i.merge(rec); err != nil {
		return err
	}
	i.fresh.mark(interfaceScalars)
	return nil
}

func (i *Interface) ID() string {
	return i.id
}

func (i *Interface) HostID(ctx context.Context) (string, error) {
	if err := i.ensure(ctx, i.hostID.ok); err != nil {
		return "", err
	}
	return i.hostID.val, nil
}

func (i *Interface) DNS(ctx context.Context) (string, error) {
	if err := i.ensure(ctx, i.dns.ok); err != nil {
		return "", err
	}
	return i.dns.val, nil
}

func (i *Interface) IP(ctx context.Context) (string, error) {
	if err := i.ensure(ctx, i.ip.ok); err != nil {
		return "", err
	}
	return i.ip.val, nil
}

func (i *Interface) Port(ctx context.Context) (string, error) {
	if err := i.ensure(ctx, i.port.ok); err != nil {
		return "", err
	}
	return i.port.val, nil
}

func (i *Interface) Type(ctx context.Context) (InterfaceType, error) {
	if err := i.ensure(ctx, i.typ.ok); err != nil {
		return 0, err
	}
	return i.typ.val, nil
}

func (i *Interface) Main(ctx context.Context) (bool, error) {
	if err := i.ensure(ctx, i.main.ok); err != nil {
		return false, err
	}
	return i.main.val, nil
}

// UseIP 为 true 时通过 IP 连接，否则通过 DNS。
func (i *Interface) UseIP(ctx context.Context) (bool, error) {
	if err := i.ensure(ctx, i.useIP.ok); err != nil {
		return false, err
	}
	return i.useIP.val, nil
}

func (i *Interface) update(ctx context.Context, params core.Params) error {
	params["interfaceid"] = i.id
	return i.session.Call(ctx, "hostinterface.update", params, nil)
}

func (i *Interface) SetDNS(ctx context.Context, dns string) error {
	if err := i.update(ctx, core.Params{"dns": dns}); err != nil {
		return err
	}
	old := i.dns.val
	i.dns.set(dns)
	log.Infow("接口 DNS 已修改", "interfaceid", i.id, "hostid", i.hostID.val, "old", old, "new", dns)
	return nil
}

func (i *Interface) SetIP(ctx context.Context, ip string) error {
	if err := i.update(ctx, core.Params{"ip": ip}); err != nil {
		return err
	}
	old := i.ip.val
	i.ip.set(ip)
	log.Infow("接口 IP 已修改", "interfaceid", i.id, "hostid", i.hostID.val, "old", old, "new", ip)
	return nil
}

func (i *Interface) SetUseIP(ctx context.Context, useIP bool) error {
	if err := i.update(ctx, core.Params{"useip": boolInt(useIP)}); err != nil {
		return err
	}
	i.useIP.set(useIP)
	log.Infow("接口连接方式已修改", "interfaceid", i.id, "hostid", i.hostID.val, "useip", useIP)
	return nil
}

func (i *Interface) String() string {
	return fmt.Sprintf("Interface(%s)", i.id)
}

// InterfaceFactory 主机接口工厂。
type InterfaceFactory struct {
	session core.Session
}

func NewInterfaceFactory(s core.Session) *InterfaceFactory {
	return &InterfaceFactory{session: s}
}

func (f *InterfaceFactory) Make(rec core.Record) (*Interface, error) {
	return newInterface(f.session, rec)
}

func (f *InterfaceFactory) build(_ context.Context, rec core.Record) (*Interface, error) {
	return f.Make(rec)
}

func (f *InterfaceFactory) GetByID(ctx context.Context, id string) (*Interface, error) {
	rec, err := fetchOne(ctx, f.session, "hostinterface.get", core.Params{
		"output":       extend,
		"interfaceids": []string{id},
	}, "interfaceid", id)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}

func (f *InterfaceFactory) GetByFilter(ctx context.Context, filter core.Params) (*Cursor[*Interface], error) {
	records, err := fetchAll(ctx, f.session, "hostinterface.get", core.Params{
		"output": extend,
		"filter": filter,
	})
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.build), nil
}
