// Package web 提供只读的状态 HTTP 接口
package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mayugoro/xray/config"
	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/web/controller"
	"github.com/mayugoro/xray/web/middleware"
	"github.com/mayugoro/xray/web/security"

	"github.com/gin-gonic/gin"
)

// Server 状态接口服务，只接受回环地址
type Server struct {
	listen   string
	engine   *gin.Engine
	listener net.Listener
	limiter  *security.RateLimiter

	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewServer(cfg *config.Config, accounts controller.AccountLister, conns controller.ConnectionReporter, tunnel controller.TunnelReporter) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		listen:  cfg.HTTPListen,
		limiter: security.NewRateLimiter(security.DefaultRateLimitConfig),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.engine = s.initRouter(cfg.LogLevel == config.Debug, accounts, conns, tunnel)
	return s
}

func (s *Server) initRouter(debug bool, accounts controller.AccountLister, conns controller.ConnectionReporter, tunnel controller.TunnelReporter) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware())
	engine.Use(s.limiter.Middleware())
	controller.NewStatusController(&engine.RouterGroup, accounts, conns, tunnel, config.TelemetryTimeout)
	return engine
}

func (s *Server) GetRateLimiter() *security.RateLimiter {
	return s.limiter
}

// Handler 返回路由，便于测试直接调用
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	addr, err := loopbackAddr(s.listen)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Info("Status API running on", listener.Addr())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Warning("status api stopped:", err)
		}
	}()
	return nil
}

// Addr 返回实际监听地址，端口为 0 时由系统分配
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop() error {
	s.cancel()
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// loopbackAddr 强制主机部分为回环地址，接口不做鉴权
func loopbackAddr(listen string) (string, error) {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", err
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return listen, nil
	}
	if host != "" && host != "localhost" {
		logger.Warningf("status api listen host %q is not loopback, falling back to localhost", host)
	}
	return net.JoinHostPort(fallbackToLocalhost(host), port), nil
}

// fallbackToLocalhost 根据传入地址返回对应的本地回环地址
func fallbackToLocalhost(listen string) string {
	ip := net.ParseIP(listen)
	if ip == nil || ip.To4() != nil {
		return "127.0.0.1"
	}
	return "::1"
}
