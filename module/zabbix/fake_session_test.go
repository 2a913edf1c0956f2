package zabbix

import (
	"context"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"github.com/bytedance/sonic"
)

type sessionCall struct {
	method string
	params any
}

// fakeSession 按方法名返回预置结果，并记录每次调用。
type fakeSession struct {
	calls    []sessionCall
	handlers map[string]func(p core.Params) (any, error)
}

func newFakeSession() *fakeSession {
	return &fakeSession{handlers: map[string]func(core.Params) (any, error){}}
}

func (f *fakeSession) on(method string, h func(p core.Params) (any, error)) *fakeSession {
	f.handlers[method] = h
	return f
}

func (f *fakeSession) reply(method string, v any) *fakeSession {
	return f.on(method, func(core.Params) (any, error) { return v, nil })
}

func (f *fakeSession) fail(method string, err error) *fakeSession {
	return f.on(method, func(core.Params) (any, error) { return nil, err })
}

func (f *fakeSession) Call(_ context.Context, method string, params any, result any) error {
	f.calls = append(f.calls, sessionCall{method: method, params: params})
	h, ok := f.handlers[method]
	if !ok {
		return &core.RemoteError{Method: method, Code: -32601, Message: "Method not found.", Data: method}
	}
	p, _ := params.(core.Params)
	v, err := h(p)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	// 与真实传输一样经过一次 JSON 编解码
	b, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(b, result)
}

func (f *fakeSession) count(method string) int {
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

// last 返回某方法最后一次调用的参数。
func (f *fakeSession) last(method string) core.Params {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method {
			p, _ := f.calls[i].params.(core.Params)
			return p
		}
	}
	return nil
}

func (f *fakeSession) reset() {
	f.calls = nil
}

var remoteFailure = &core.RemoteError{
	Method:  "host.update",
	Code:    -32500,
	Message: "Application error.",
	Data:    "No permissions to referred object or it does not exist!",
}

var ctx = context.Background()
