package core

import (
	"context"
	"fmt"
	"time"
)

// Params 远程调用参数，按 Zabbix API 约定组织。
type Params map[string]any

// Record 远程返回的松散类型记录。
type Record map[string]any

// Session 远程会话：`<resource>.<verb>` 方法调用，结果解码到 result。
type Session interface {
	Call(ctx context.Context, method string, params any, result any) error
}

// Cache 缓存接口,将来可以适配多种缓存
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	// Set expiration 为 0 表示永不过期
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// KafkaProducer 生产 Kafka 消息。
type KafkaProducer interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

// RemoteError Zabbix API 返回的 error 对象。
type RemoteError struct {
	Method  string
	Code    int
	Message string
	Data    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s (code %d): %s", e.Method, e.Message, e.Code, e.Data)
}

func (e *RemoteError) Type() string {
	return "RemoteCallError"
}
