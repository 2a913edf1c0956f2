package zabbix

import (
	"context"
	"fmt"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
)

const groupScalars fieldGroup = 1

type groupRecord struct {
	Name *string `mapstructure:"name"`
}

// Group 主机组。
type Group struct {
	session core.Session
	id      string
	fresh   freshness
	name    field[string]
}

func newGroup(s core.Session, rec core.Record) (*Group, error) {
	id := identity(rec, "groupid")
	if id == "" {
		return nil, missingIdentity("Group", "groupid")
	}
	g := &Group{session: s, id: id}
	if err := g.merge(rec); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Group) merge(rec core.Record) error {
	var r groupRecord
	if err := decodeRecord(rec, &r); err != nil {
		return err
	}
	g.name.merge(r.Name)
	return nil
}

func (g *Group) hydrate(ctx context.Context) error {
	rec, err := fetchOne(ctx, g.session, "hostgroup.get", core.Params{
		"output":   extend,
		"groupids": []string{g.id},
	}, "groupid", g.id)
	if err != nil {
		return err
	}
	if err := g.merge(rec); err != nil {
		return err
	}
	g.fresh.mark(groupScalars)
	return nil
}

func (g *Group) ID() string {
	return g.id
}

func (g *Group) Name(ctx context.Context) (string, error) {
	if !g.name.ok && !g.fresh.has(groupScalars) {
		if err := g.hydrate(ctx); err != nil {
			return "", err
		}
	}
	return g.name.val, nil
}

func (g *Group) String() string {
	return fmt.Sprintf("Group(%s)", g.id)
}

// GroupFactory 主机组工厂。
type GroupFactory struct {
	session core.Session
}

func NewGroupFactory(s core.Session) *GroupFactory {
	return &GroupFactory{session: s}
}

func (f *GroupFactory) Make(rec core.Record) (*Group, error) {
	return newGroup(f.session, rec)
}

func (f *GroupFactory) build(_ context.Context, rec core.Record) (*Group, error) {
	return f.Make(rec)
}

func (f *GroupFactory) GetByID(ctx context.Context, id string) (*Group, error) {
	rec, err := fetchOne(ctx, f.session, "hostgroup.get", core.Params{
		"output":   extend,
		"groupids": []string{id},
	}, "groupid", id)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}

func (f *GroupFactory) GetByFilter(ctx context.Context, filter core.Params) (*Cursor[*Group], error) {
	records, err := fetchAll(ctx, f.session, "hostgroup.get", core.Params{
		"output": extend,
		"filter": filter,
	})
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.build), nil
}

// GetByName 按名称精确匹配，返回第一个。
func (f *GroupFactory) GetByName(ctx context.Context, name string) (*Group, error) {
	rec, err := fetchOne(ctx, f.session, "hostgroup.get", core.Params{
		"output": extend,
		"filter": core.Params{"name": name},
	}, "name", name)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}

func (f *GroupFactory) Create(ctx context.Context, name string) (*Group, error) {
	id, err := createdID(ctx, f.session, "hostgroup.create", core.Params{"name": name}, "groupids")
	if err != nil {
		return nil, err
	}
	log.Infow("主机组已创建", "groupid", id, "name", name)
	return f.Make(core.Record{"groupid": id, "name": name})
}
