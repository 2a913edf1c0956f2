package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"regexp"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const (
	contentType      = "application/json-rpc"
	defaultUserAgent = "itops-zabbix"
	defaultLogBody   = 1024
)

// 日志中屏蔽的字段：登录口令与会话令牌。
var secretField = regexp.MustCompile(`"(auth|password|sessionid|token)"\s*:\s*"[^"]*"`)

// Client 面向 Zabbix 前端的 HTTP 客户端，请求体统一为 JSON-RPC。
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	logger     *log.Log
	maxLogBody int
}

type Config struct {
	BaseURL            string
	Timeout            time.Duration
	Headers            map[string]string
	InsecureSkipVerify bool
	MaxLogBody         int // 调试日志中请求/响应体的最大字节数
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxLogBody <= 0 {
		cfg.MaxLogBody = defaultLogBody
	}
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	headers := map[string]string{"User-Agent": defaultUserAgent}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		headers:    headers,
		maxLogBody: cfg.MaxLogBody,
	}
}

func (c *Client) WithLogger(logger *log.Log) *Client {
	c.logger = logger
	return c
}

// HTTPClient 暴露底层 *http.Client，便于测试时挂载 httpmock。
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Post 将 body 序列化后 POST 到 BaseURL+path。headers 覆盖默认 Header。
func (c *Client) Post(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		var err error
		if payload, err = sonic.Marshal(body); err != nil {
			return nil, errors.Wrap(err, "序列化请求体失败")
		}
	}

	var statusCode int
	var respBody []byte
	defer func(start time.Time) {
		if c.logger == nil {
			return
		}
		c.logger.Debugw("HTTP",
			"url", url,
			"request", c.redact(payload),
			"status_code", statusCode,
			"response", c.redact(respBody),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "创建请求失败")
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Content-Type", contentType)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "请求失败")
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	respBody, err = io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "读取响应失败")
	}
	statusCode = httpResp.StatusCode

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}

// redact 屏蔽敏感字段并截断。
func (c *Client) redact(b []byte) string {
	s := secretField.ReplaceAllString(string(b), `"$1":"***"`)
	if len(s) > c.maxLogBody {
		return s[:c.maxLogBody] + "...(truncated)"
	}
	return s
}

// DecodeJSON 将响应体解析为 JSON。
func (r *Response) DecodeJSON(v any) error {
	if err := sonic.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "解析 JSON 失败")
	}
	return nil
}

// IsSuccess 检查响应是否成功（2xx）。
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) Error() error {
	if r.IsSuccess() {
		return nil
	}
	return errors.Errorf("请求失败，状态码: %d, 响应: %s", r.StatusCode, string(r.Body))
}
