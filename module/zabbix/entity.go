package zabbix

import (
	"context"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/utils/timex"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const extend = "extend"

// nowFunc 便于测试固定时间。
var nowFunc = timex.NowLocalTime

// field 本地缓存字段，ok 表示远程记录中出现过该字段。
type field[T any] struct {
	val T
	ok  bool
}

func (f *field[T]) set(v T) {
	f.val, f.ok = v, true
}

// fill 只在字段尚未缓存时写入，已缓存的值以本地为准，直到写穿更新。
func (f *field[T]) fill(v T) {
	if !f.ok {
		f.set(v)
	}
}

func (f *field[T]) merge(p *T) {
	if p != nil {
		f.fill(*p)
	}
}

// fieldGroup 一次 `<resource>.get` 能整体拉取的字段组。
type fieldGroup uint16

// freshness 记录已经拉取过的字段组。缓存只增不减，没有过期时间。
type freshness struct {
	loaded fieldGroup
}

func (f *freshness) has(g fieldGroup) bool {
	return f.loaded&g != 0
}

func (f *freshness) mark(g fieldGroup) {
	f.loaded |= g
}

func (f *freshness) purge(g fieldGroup) {
	f.loaded &^= g
}

// decodeRecord 把松散类型的远程记录解码到带指针字段的结构体，缺失字段保持 nil。
func decodeRecord(rec core.Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "创建解码器失败")
	}
	if err := dec.Decode(map[string]any(rec)); err != nil {
		return errors.Wrap(err, "解析远程记录失败")
	}
	return nil
}

// identity 读取记录中的标识字段，数字与字符串均可。
func identity(rec core.Record, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	id := cast.ToString(v)
	if id == "0" {
		return ""
	}
	return id
}

// stringMap inventory 为空时 Zabbix 返回 []，这里统一成空 map。
func stringMap(v any) map[string]string {
	if m, ok := v.(map[string]any); ok {
		return cast.ToStringMapString(m)
	}
	return map[string]string{}
}

func unixTime(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}
	t := time.Unix(*sec, 0).Local()
	return &t
}

func flag(p *int) *bool {
	if p == nil {
		return nil
	}
	b := *p != 0
	return &b
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// fetchAll 调用 `<resource>.get` 并返回全部记录。
func fetchAll(ctx context.Context, s core.Session, method string, params core.Params) ([]core.Record, error) {
	var records []core.Record
	if err := s.Call(ctx, method, params, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// fetchOne 返回第一条记录，没有记录时返回 ErrNotFound。
func fetchOne(ctx context.Context, s core.Session, method string, params core.Params, key, id string) (core.Record, error) {
	records, err := fetchAll(ctx, s, method, params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, notFound(method, key, id)
	}
	return records[0], nil
}

// createdID 解析 create 类方法返回的 {"<key>": ["id"]}。
func createdID(ctx context.Context, s core.Session, method string, params any, key string) (string, error) {
	var out map[string]any
	if err := s.Call(ctx, method, params, &out); err != nil {
		return "", err
	}
	ids := cast.ToStringSlice(out[key])
	if len(ids) == 0 || ids[0] == "" {
		return "", errors.Errorf("%s 未返回 %s", method, key)
	}
	return ids[0], nil
}

// materialize 按原始记录构造实体集合，集合长度与原始记录一致时复用已构造的实体。
func materialize[T any](cached []T, raw []core.Record, build func(core.Record) (T, error)) ([]T, error) {
	if cached != nil && len(cached) == len(raw) {
		return cached, nil
	}
	out := make([]T, 0, len(raw))
	for _, rec := range raw {
		e, err := build(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
