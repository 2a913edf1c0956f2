package jsonrpc

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/cache"
	zhttp "devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/http"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	endpoint = "/api_jsonrpc.php"

	codeInvalidParams = -32602
	codeInternal      = -32500
)

// 不需要携带 auth 的方法
var anonymous = map[string]bool{
	"apiinfo.version": true,
	"user.login":      true,
}

type Config struct {
	URL                string        `mapstructure:"url" validate:"required,url"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	APIToken           string        `mapstructure:"api_token"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	RateLimit          float64       `mapstructure:"rate_limit"` // 每秒请求数，0 表示不限速
	Burst              int           `mapstructure:"burst"`
	TokenTTL           time.Duration `mapstructure:"token_ttl"`
	BearerAuth         bool          `mapstructure:"bearer_auth"` // 7.2 起只接受 Authorization 头
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      uint64 `json:"id"`
	Auth    string `json:"auth,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      uint64          `json:"id"`
}

// Client Zabbix JSON-RPC 会话，可并发使用。
type Client struct {
	cfg     Config
	http    *zhttp.Client
	tokens  core.Cache
	limiter *rate.Limiter
	seq     atomic.Uint64

	mu    sync.Mutex
	token string
}

// NewClient tokens 用于在多个进程间共享登录令牌，可为 nil。
func NewClient(cfg Config, tokens core.Cache) *Client {
	if tokens == nil {
		tokens = cache.NewMemoryCache()
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 30 * time.Minute
	}

	c := &Client{
		cfg: cfg,
		http: zhttp.NewClient(zhttp.Config{
			BaseURL:            strings.TrimSuffix(strings.TrimSuffix(cfg.URL, endpoint), "/"),
			Timeout:            cfg.Timeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}).WithLogger(log.Logger),
		tokens: tokens,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// HTTP 返回底层 HTTP 客户端。
func (c *Client) HTTP() *zhttp.Client {
	return c.http
}

func (c *Client) tokenKey() string {
	return "zabbix:auth:" + c.cfg.URL + ":" + c.cfg.Username
}

// Call 实现 core.Session。会话过期时清除令牌并重新登录重试一次。
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	if anonymous[method] {
		return c.call(ctx, method, params, "", result)
	}

	auth, err := c.auth(ctx)
	if err != nil {
		return err
	}
	err = c.call(ctx, method, params, auth, result)
	if !isSessionExpired(err) || c.cfg.APIToken != "" {
		return err
	}

	log.Warnw("zabbix 会话过期，重新登录", "method", method)
	c.dropToken(ctx, auth)
	if auth, err = c.auth(ctx); err != nil {
		return err
	}
	return c.call(ctx, method, params, auth, result)
}

func (c *Client) call(ctx context.Context, method string, params any, auth string, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "等待限流失败")
		}
	}
	if params == nil {
		params = core.Params{}
	}

	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.seq.Add(1),
	}
	var headers map[string]string
	switch {
	case auth == "":
	case c.cfg.BearerAuth:
		headers = map[string]string{"Authorization": "Bearer " + auth}
	default:
		req.Auth = auth
	}

	resp, err := c.http.Post(ctx, endpoint, req, headers)
	if err != nil {
		return errors.Wrapf(err, "调用 %s 失败", method)
	}
	if err := resp.Error(); err != nil {
		return errors.Wrapf(err, "调用 %s 失败", method)
	}

	var out response
	if err := resp.DecodeJSON(&out); err != nil {
		return errors.Wrapf(err, "调用 %s 失败", method)
	}
	if out.Error != nil {
		return &core.RemoteError{
			Method:  method,
			Code:    out.Error.Code,
			Message: out.Error.Message,
			Data:    out.Error.Data,
		}
	}
	if result == nil || len(out.Result) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(out.Result, result); err != nil {
		return errors.Wrapf(err, "解析 %s 结果失败", method)
	}
	return nil
}

// auth 依次使用静态 API Token、本地令牌、共享缓存中的令牌，最后才登录。
func (c *Client) auth(ctx context.Context) (string, error) {
	if c.cfg.APIToken != "" {
		return c.cfg.APIToken, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}
	if token, err := c.tokens.Get(ctx, c.tokenKey()); err == nil && token != "" {
		c.token = token
		return token, nil
	}

	var token string
	err := c.call(ctx, "user.login", core.Params{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	}, "", &token)
	if err != nil {
		return "", errors.Wrap(err, "zabbix 登录失败")
	}
	c.token = token
	if err := c.tokens.Set(ctx, c.tokenKey(), token, c.cfg.TokenTTL); err != nil {
		log.Warnw("保存 zabbix 令牌失败", "error", err)
	}
	log.Infow("zabbix 登录成功", "url", c.cfg.URL, "username", c.cfg.Username)
	return token, nil
}

// dropToken 仅当令牌仍是 stale 时清除，避免覆盖其他协程刚刷新的令牌。
func (c *Client) dropToken(ctx context.Context, stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != stale {
		return
	}
	c.token = ""
	if err := c.tokens.Del(ctx, c.tokenKey()); err != nil {
		log.Warnw("清除 zabbix 令牌失败", "error", err)
	}
}

// Login 主动登录，用于启动时校验凭据。
func (c *Client) Login(ctx context.Context) error {
	_, err := c.auth(ctx)
	return err
}

// Logout 注销会话并清除共享令牌。使用 API Token 时不做任何事。
func (c *Client) Logout(ctx context.Context) error {
	if c.cfg.APIToken != "" {
		return nil
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return nil
	}

	var ok bool
	err := c.call(ctx, "user.logout", core.Params{}, token, &ok)
	c.dropToken(ctx, token)
	return err
}

// Version 返回 Zabbix API 版本。
func (c *Client) Version(ctx context.Context) (string, error) {
	var v string
	if err := c.Call(ctx, "apiinfo.version", core.Params{}, &v); err != nil {
		return "", err
	}
	return v, nil
}

func isSessionExpired(err error) bool {
	var re *core.RemoteError
	if !errors.As(err, &re) {
		return false
	}
	if re.Code != codeInvalidParams && re.Code != codeInternal {
		return false
	}
	data := strings.ToLower(re.Data)
	return strings.Contains(data, "re-login") ||
		strings.Contains(data, "not authorised") ||
		strings.Contains(data, "not authorized") ||
		strings.Contains(data, "session terminated")
}
