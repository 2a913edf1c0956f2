package zabbix

import (
	"context"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const exportRoot = "zabbix_export"

// Format 导入导出格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatYAML, FormatXML, FormatJSON:
		return f, nil
	case "":
		return FormatYAML, nil
	}
	return "", errors.Errorf("不支持的格式: %s", s)
}

// ExportOptions 需要导出的对象 ID。
type ExportOptions struct {
	HostIDs     []string
	TemplateIDs []string
	GroupIDs    []string
}

func (o ExportOptions) params() core.Params {
	options := core.Params{}
	if len(o.HostIDs) > 0 {
		options["hosts"] = o.HostIDs
	}
	if len(o.TemplateIDs) > 0 {
		options["templates"] = o.TemplateIDs
	}
	if len(o.GroupIDs) > 0 {
		options["groups"] = o.GroupIDs
	}
	return options
}

// ImportRules configuration.import 的 rules 参数。
type ImportRules core.Params

// DefaultImportRules 新建缺失对象并更新已有对象，不删除任何东西。
func DefaultImportRules() ImportRules {
	upsert := core.Params{"createMissing": true, "updateExisting": true}
	return ImportRules{
		"groups":          core.Params{"createMissing": true},
		"hosts":           upsert,
		"templates":       upsert,
		"templateLinkage": core.Params{"createMissing": true},
		"items":           upsert,
		"triggers":        upsert,
		"discoveryRules":  upsert,
		"graphs":          upsert,
		"valueMaps":       upsert,
	}
}

// Configuration configuration.export / configuration.import 的透传封装。
type Configuration struct {
	session core.Session
}

func NewConfiguration(s core.Session) *Configuration {
	return &Configuration{session: s}
}

func (c *Configuration) Export(ctx context.Context, format Format, opts ExportOptions) (string, error) {
	options := opts.params()
	if len(options) == 0 {
		return "", errors.New("导出对象不能为空")
	}
	var out string
	err := c.session.Call(ctx, "configuration.export", core.Params{
		"format":  string(format),
		"options": options,
	}, &out)
	if err != nil {
		return "", err
	}
	return out, nil
}

// CheckSource 提交前的本地自检：YAML 与 JSON 必须能解析且以 zabbix_export 为根，XML 交给服务端校验。
func CheckSource(format Format, source string) error {
	if len(source) == 0 {
		return errors.New("导入内容不能为空")
	}
	var root map[string]any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(source), &root); err != nil {
			return errors.Wrap(err, "YAML 解析失败")
		}
	case FormatJSON:
		if err := sonic.UnmarshalString(source, &root); err != nil {
			return errors.Wrap(err, "JSON 解析失败")
		}
	default:
		return nil
	}
	if _, ok := root[exportRoot]; !ok {
		return errors.Errorf("缺少 %s 根节点", exportRoot)
	}
	return nil
}

// Import rules 为 nil 时使用 DefaultImportRules。
func (c *Configuration) Import(ctx context.Context, format Format, source string, rules ImportRules) error {
	if err := CheckSource(format, source); err != nil {
		return err
	}
	if rules == nil {
		rules = DefaultImportRules()
	}
	var ok bool
	err := c.session.Call(ctx, "configuration.import", core.Params{
		"format": string(format),
		"source": source,
		"rules":  core.Params(rules),
	}, &ok)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("configuration.import 返回 false")
	}
	log.Infow("配置已导入", "format", string(format), "bytes", len(source))
	return nil
}
