package zabbix

import (
	"context"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// HostSpec 创建主机的参数。
type HostSpec struct {
	Host        string            `validate:"required,max=128"`
	Name        string            `validate:"max=128"`
	GroupIDs    []string          `validate:"required,min=1,dive,required,numeric"`
	TemplateIDs []string          `validate:"dive,numeric"`
	Interfaces  []InterfaceSpec   `validate:"dive"`
	Macros      map[string]string `validate:"dive,keys,startswith={$,endswith=},endkeys"`
	Inventory   map[string]string
	ProxyID     string     `validate:"omitempty,numeric"`
	Status      HostStatus `validate:"oneof=0 1"`
}

// InterfaceSpec 创建主机时附带的接口。
type InterfaceSpec struct {
	Type    InterfaceType     `validate:"oneof=1 2 3 4"`
	Main    bool
	UseIP   bool
	IP      string            `validate:"required_if=UseIP true,omitempty,ip"`
	DNS     string            `validate:"required_if=UseIP false"`
	Port    string            `validate:"required,numeric"`
	Details map[string]string // SNMP 接口需要，缺省为 v2c + {$SNMP_COMMUNITY}
}

func (s HostSpec) params() core.Params {
	groups := make([]core.Params, 0, len(s.GroupIDs))
	for _, id := range s.GroupIDs {
		groups = append(groups, core.Params{"groupid": id})
	}
	params := core.Params{
		"host":   s.Host,
		"groups": groups,
		"status": int(s.Status),
	}
	if s.Name != "" {
		params["name"] = s.Name
	}
	if len(s.TemplateIDs) > 0 {
		templates := make([]core.Params, 0, len(s.TemplateIDs))
		for _, id := range s.TemplateIDs {
			templates = append(templates, core.Params{"templateid": id})
		}
		params["templates"] = templates
	}
	if len(s.Interfaces) > 0 {
		interfaces := make([]core.Params, 0, len(s.Interfaces))
		for _, i := range s.Interfaces {
			p := core.Params{
				"type":  int(i.Type),
				"main":  boolInt(i.Main),
				"useip": boolInt(i.UseIP),
				"ip":    i.IP,
				"dns":   i.DNS,
				"port":  i.Port,
			}
			if i.Type == InterfaceSNMP {
				details := i.Details
				if len(details) == 0 {
					details = map[string]string{"version": "2", "community": "{$SNMP_COMMUNITY}"}
				}
				p["details"] = details
			}
			interfaces = append(interfaces, p)
		}
		params["interfaces"] = interfaces
	}
	if len(s.Macros) > 0 {
		macros := make([]core.Params, 0, len(s.Macros))
		for k, v := range s.Macros {
			macros = append(macros, core.Params{"macro": k, "value": v})
		}
		params["macros"] = macros
	}
	if len(s.Inventory) > 0 {
		params["inventory_mode"] = 0
		params["inventory"] = s.Inventory
	}
	if s.ProxyID != "" {
		params["proxy_hostid"] = s.ProxyID
	}
	return params
}

// HostFactory 主机工厂。
type HostFactory struct {
	session core.Session
}

func NewHostFactory(s core.Session) *HostFactory {
	return &HostFactory{session: s}
}

func (f *HostFactory) Make(rec core.Record) (*Host, error) {
	return newHost(f.session, rec)
}

func (f *HostFactory) build(_ context.Context, rec core.Record) (*Host, error) {
	return f.Make(rec)
}

func (f *HostFactory) GetByID(ctx context.Context, id string) (*Host, error) {
	rec, err := fetchOne(ctx, f.session, "host.get", core.Params{
		"output":  extend,
		"hostids": []string{id},
	}, "hostid", id)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}

// GetByFilter options 原样合并到 host.get 参数，例如 selectInterfaces、limit。
func (f *HostFactory) GetByFilter(ctx context.Context, filter core.Params, options core.Params) (*Cursor[*Host], error) {
	params := core.Params{"output": extend, "filter": filter}
	for k, v := range options {
		params[k] = v
	}
	records, err := fetchAll(ctx, f.session, "host.get", params)
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.build), nil
}

// GetByName 按技术名称精确查找。
func (f *HostFactory) GetByName(ctx context.Context, host string) (*Host, error) {
	rec, err := fetchOne(ctx, f.session, "host.get", core.Params{
		"output": extend,
		"filter": core.Params{"host": host},
	}, "host", host)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}

// Search 模糊查找，支持 * 通配。
func (f *HostFactory) Search(ctx context.Context, search core.Params, options core.Params) (*Cursor[*Host], error) {
	params := core.Params{
		"output":                 extend,
		"search":                 search,
		"searchWildcardsEnabled": true,
	}
	for k, v := range options {
		params[k] = v
	}
	records, err := fetchAll(ctx, f.session, "host.get", params)
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.build), nil
}

func (f *HostFactory) GetByGroupIDs(ctx context.Context, groupIDs ...string) (*Cursor[*Host], error) {
	records, err := fetchAll(ctx, f.session, "host.get", core.Params{
		"output":   extend,
		"groupids": groupIDs,
	})
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.build), nil
}

// Create 校验参数后创建主机，返回只缓存了提交字段的 Host。
func (f *HostFactory) Create(ctx context.Context, spec HostSpec) (*Host, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, errors.Wrap(err, "主机参数校验失败")
	}
	id, err := createdID(ctx, f.session, "host.create", spec.params(), "hostids")
	if err != nil {
		return nil, err
	}
	log.Infow("主机已创建", "hostid", id, "host", spec.Host)

	rec := core.Record{"hostid": id, "host": spec.Host, "status": int(spec.Status)}
	if spec.Name != "" {
		rec["name"] = spec.Name
	}
	return f.Make(rec)
}
