package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/zabbix"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// Server 提供 HTTP 入口：主机查询与修改、事件确认、近期问题、配置导出。
type Server struct {
	cfg        config.APICfg
	factories  *zabbix.Factories
	router     *gin.Engine
	httpServer *http.Server
}

func New(cfg config.APICfg, factories *zabbix.Factories) *Server {
	s := &Server{cfg: cfg, factories: factories}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	mode := s.cfg.RunMode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 第一层：/api/itops-zabbix
	api := engine.Group("/api/itops-zabbix")

	// 第二层：v1 版本
	v1 := api.Group("/v1")
	{
		v1.GET("/hosts/:host_id", s.getHost)
		v1.PUT("/hosts/:host_id/macros", s.putMacro)
		v1.PUT("/hosts/:host_id/inventory", s.putInventory)
		v1.PUT("/hosts/:host_id/proxy", s.putProxy)
		v1.POST("/events/:event_id/ack", s.ackEvent)
		v1.GET("/problems/recent", s.recentProblems)
		v1.GET("/configuration/export", s.exportConfiguration)
	}
	return engine
}

// Handler 便于测试直接驱动路由。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动 HTTP Server，ctx 结束后优雅关闭。
func (s *Server) Start(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.httpServer = httpSrv
	log.Infof("HTTP 服务启动, addr=%s", httpSrv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Stop 优雅关闭 HTTP 服务。
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client", c.ClientIP(),
		)
	}
}
