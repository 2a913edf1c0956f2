package zabbix

import (
	"context"
	"fmt"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
)

type ProxyStatus int

const (
	ProxyActive  ProxyStatus = 5
	ProxyPassive ProxyStatus = 6
)

const (
	proxyScalars fieldGroup = 1 << iota
	proxyHosts
)

type proxyRecord struct {
	Host        *string        `mapstructure:"host"`
	Name        *string        `mapstructure:"name"` // 7.0 起 host 改名为 name
	Status      *int           `mapstructure:"status"`
	Description *string        `mapstructure:"description"`
	Hosts       *[]core.Record `mapstructure:"hosts"`
}

// Proxy 代理。
type Proxy struct {
	session     core.Session
	id          string
	fresh       freshness
	host        field[string]
	status      field[ProxyStatus]
	description field[string]
	rawHosts    field[[]core.Record]
	hosts       []*Host
}

func newProxy(s core.Session, rec core.Record) (*Proxy, error) {
	id := identity(rec, "proxyid")
	if id == "" {
		return nil, missingIdentity("Proxy", "proxyid")
	}
	p := &Proxy{session: s, id: id}
	if err := p.merge(rec); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Proxy) merge(rec core.Record) error {
	var r proxyRecord
	if err := decodeRecord(rec, &r); err != nil {
		return err
	}
	if r.Host == nil {
		r.Host = r.Name
	}
	p.host.merge(r.Host)
	if r.Status != nil {
		p.status.fill(ProxyStatus(*r.Status))
	}
	p.description.merge(r.Description)
	if r.Hosts != nil {
		p.rawHosts.fill(*r.Hosts)
		p.fresh.mark(proxyHosts)
	}
	return nil
}

func (p *Proxy) hydrate(ctx context.Context, g fieldGroup) error {
	params := core.Params{"proxyids": []string{p.id}}
	switch g {
	case proxyScalars:
		params["output"] = extend
	case proxyHosts:
		params["output"] = []string{"proxyid"}
		params["selectHosts"] = []string{"hostid", "host", "name", "status"}
	}
	rec, err := fetchOne(ctx, p.session, "proxy.get", params, "proxyid", p.id)
	if err != nil {
		return err
	}
	if err := p.merge(rec); err != nil {
		return err
	}
	p.fresh.mark(g)
	return nil
}

func (p *Proxy) ensure(ctx context.Context, present bool) error {
	if present || p.fresh.has(proxyScalars) {
		return nil
	}
	return p.hydrate(ctx, proxyScalars)
}

func (p *Proxy) ID() string {
	return p.id
}

// Host 代理名称。
func (p *Proxy) Host(ctx context.Context) (string, error) {
	if err := p.ensure(ctx, p.host.ok); err != nil {
		return "", err
	}
	return p.host.val, nil
}

func (p *Proxy) Status(ctx context.Context) (ProxyStatus, error) {
	if err := p.ensure(ctx, p.status.ok); err != nil {
		return 0, err
	}
	return p.status.val, nil
}

func (p *Proxy) Description(ctx context.Context) (string, error) {
	if err := p.ensure(ctx, p.description.ok); err != nil {
		return "", err
	}
	return p.description.val, nil
}

// Hosts 经由该代理监控的主机。
func (p *Proxy) Hosts(ctx context.Context) ([]*Host, error) {
	if !p.fresh.has(proxyHosts) {
		if err := p.hydrate(ctx, proxyHosts); err != nil {
			return nil, err
		}
	}
	hosts, err := materialize(p.hosts, p.rawHosts.val, func(rec core.Record) (*Host, error) {
		return newHost(p.session, rec)
	})
	if err != nil {
		return nil, err
	}
	p.hosts = hosts
	return hosts, nil
}

func (p *Proxy) String() string {
	return fmt.Sprintf("Proxy(%s)", p.id)
}

// ProxyFactory 代理工厂。
type ProxyFactory struct {
	session core.Session
}

func NewProxyFactory(s core.Session) *ProxyFactory {
	return &ProxyFactory{session: s}
}

func (f *ProxyFactory) Make(rec core.Record) (*Proxy, error) {
	return newProxy(f.session, rec)
}

func (f *ProxyFactory) build(_ context.Context, rec core.Record) (*Proxy, error) {
	return f.Make(rec)
}

func (f *ProxyFactory) GetByID(ctx context.Context, id string) (*Proxy, error) {
	rec, err := fetchOne(ctx, f.session, "proxy.get", core.Params{
		"output":   extend,
		"proxyids": []string{id},
	}, "proxyid", id)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}

func (f *ProxyFactory) GetByFilter(ctx context.Context, filter core.Params) (*Cursor[*Proxy], error) {
	records, err := fetchAll(ctx, f.session, "proxy.get", core.Params{
		"output": extend,
		"filter": filter,
	})
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.build), nil
}

func (f *ProxyFactory) GetByName(ctx context.Context, name string) (*Proxy, error) {
	rec, err := fetchOne(ctx, f.session, "proxy.get", core.Params{
		"output": extend,
		"filter": core.Params{"host": name},
	}, "host", name)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}
