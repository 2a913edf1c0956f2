package zabbix

import (
	"context"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
)

// Cursor 批量查询结果。远程调用在创建前已经完成，实体在 Next 时才构造；
// 只能遍历一次。
type Cursor[T any] struct {
	records  []core.Record
	pos      int
	build    func(ctx context.Context, rec core.Record) (T, error)
	cur      T
	err      error
	exceeded bool
}

func newCursor[T any](records []core.Record, build func(ctx context.Context, rec core.Record) (T, error)) *Cursor[T] {
	return &Cursor[T]{records: records, build: build}
}

// guardedCursor 原始记录数达到 limit 时视为结果被截断，不产出任何实体。
func guardedCursor[T any](method string, limit int, records []core.Record, build func(ctx context.Context, rec core.Record) (T, error)) *Cursor[T] {
	c := newCursor(records, build)
	if limit > 0 && len(records) >= limit {
		c.exceeded = true
		c.pos = len(records)
		log.Warnw("查询结果达到上限，已丢弃", "method", method, "count", len(records), "limit", limit)
	}
	return c
}

// Total 原始记录数。
func (c *Cursor[T]) Total() int {
	return len(c.records)
}

// Exceeded 结果数达到 limit 时为 true，此时 Next 直接返回 false。
func (c *Cursor[T]) Exceeded() bool {
	return c.exceeded
}

// Next 构造下一个实体。对象已不存在的记录会被记录并跳过，其他错误终止遍历。
func (c *Cursor[T]) Next(ctx context.Context) bool {
	for c.err == nil && c.pos < len(c.records) {
		rec := c.records[c.pos]
		c.pos++

		v, err := c.build(ctx, rec)
		if IsNotFound(err) {
			logContained("跳过不存在的对象", err)
			continue
		}
		if err != nil {
			c.err = err
			return false
		}
		c.cur = v
		return true
	}
	return false
}

func (c *Cursor[T]) Value() T {
	return c.cur
}

func (c *Cursor[T]) Err() error {
	return c.err
}

// All 消费剩余的记录。
func (c *Cursor[T]) All(ctx context.Context) ([]T, error) {
	var out []T
	for c.Next(ctx) {
		out = append(out, c.Value())
	}
	return out, c.Err()
}
