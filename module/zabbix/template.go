package zabbix

import (
	"context"
	"fmt"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
)

const templateScalars fieldGroup = 1

type templateRecord struct {
	Host        *string `mapstructure:"host"`
	Name        *string `mapstructure:"name"`
	Description *string `mapstructure:"description"`
}

// Template 模板。host 为技术名称，name 为可见名称。
type Template struct {
	session     core.Session
	id          string
	fresh       freshness
	host        field[string]
	name        field[string]
	description field[string]
}

func newTemplate(s core.Session, rec core.Record) (*Template, error) {
	id := identity(rec, "templateid")
	if id == "" {
		return nil, missingIdentity("Template", "templateid")
	}
	t := &Template{session: s, id: id}
	if err := t.merge(rec); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Template) merge(rec core.Record) error {
	var r templateRecord
	if err := decodeRecord(rec, &r); err != nil {
		return err
	}
	t.host.merge(r.Host)
	t.name.merge(r.Name)
	t.description.merge(r.Description)
	return nil
}

func (t *Template) ensure(ctx context.Context, present bool) error {
	if present || t.fresh.has(templateScalars) {
		return nil
	}
	rec, err := fetchOne(ctx, t.session, "template.get", core.Params{
		"output":      extend,
		"templateids": []string{t.id},
	}, "templateid", t.id)
	if err != nil {
		return err
	}
	if err := t.merge(rec); err != nil {
		return err
	}
	t.fresh.mark(templateScalars)
	return nil
}

func (t *Template) ID() string {
	return t.id
}

func (t *Template) Host(ctx context.Context) (string, error) {
	if err := t.ensure(ctx, t.host.ok); err != nil {
		return "", err
	}
	return t.host.val, nil
}

func (t *Template) Name(ctx context.Context) (string, error) {
	if err := t.ensure(ctx, t.name.ok); err != nil {
		return "", err
	}
	return t.name.val, nil
}

func (t *Template) Description(ctx context.Context) (string, error) {
	if err := t.ensure(ctx, t.description.ok); err != nil {
		return "", err
	}
	return t.description.val, nil
}

func (t *Template) String() string {
	return fmt.Sprintf("Template(%s)", t.id)
}

// TemplateFactory 模板工厂。
type TemplateFactory struct {
	session core.Session
}

func NewTemplateFactory(s core.Session) *TemplateFactory {
	return &TemplateFactory{session: s}
}

func (f *TemplateFactory) Make(rec core.Record) (*Template, error) {
	return newTemplate(f.session, rec)
}

func (f *TemplateFactory) build(_ context.Context, rec core.Record) (*Template, error) {
	return f.Make(rec)
}

func (f *TemplateFactory) GetByID(ctx context.Context, id string) (*Template, error) {
	rec, err := fetchOne(ctx, f.session, "template.get", core.Params{
		"output":      extend,
		"templateids": []string{id},
	}, "templateid", id)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}

func (f *TemplateFactory) GetByFilter(ctx context.Context, filter core.Params) (*Cursor[*Template], error) {
	records, err := fetchAll(ctx, f.session, "template.get", core.Params{
		"output": extend,
		"filter": filter,
	})
	if err != nil {
		return nil, err
	}
	return newCursor(records, f.build), nil
}

// GetByName 按技术名称查找。
func (f *TemplateFactory) GetByName(ctx context.Context, host string) (*Template, error) {
	rec, err := fetchOne(ctx, f.session, "template.get", core.Params{
		"output": extend,
		"filter": core.Params{"host": host},
	}, "host", host)
	if err != nil {
		return nil, err
	}
	return f.Make(rec)
}
