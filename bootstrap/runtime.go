package bootstrap

import (
	"context"

	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/web"
	"github.com/mayugoro/xray/web/job"
)

const botComponent = "tgbot"

// Runtime 封装应用运行时状态
type Runtime struct {
	App        *App
	Lifecycle  *LifecycleManager
	JobManager *job.Manager
	WebServer  *web.Server
}

// NewRuntime 创建运行时实例并注册组件，停止顺序与注册顺序相反
func NewRuntime(app *App) (*Runtime, error) {
	r := &Runtime{
		App:        app,
		Lifecycle:  NewLifecycleManager(),
		JobManager: job.NewManager(),
	}

	var limiters []job.RateLimiterProvider
	if app.Config.HTTPListen != "" {
		r.WebServer = web.NewServer(app.Config, app.Accounts, app.Stats, app.Tunnel)
		limiters = append(limiters, r.WebServer)
	}
	if err := RegisterJobs(r.JobManager, app, limiters...); err != nil {
		return nil, err
	}

	// 最后停止：退出时结束本进程启动的 cloudflared
	r.Lifecycle.Register(NewComponent("cloudflared", nil, func(context.Context) error {
		if stopped := app.Argo.StopAll(); len(stopped) > 0 {
			logger.Info("stopped tunnels:", stopped)
		}
		return nil
	}))
	r.Lifecycle.Register(NewComponent(botComponent,
		func(context.Context) error { return app.TgBot.Start() },
		func(context.Context) error { app.TgBot.Stop(); return nil },
	))
	if r.WebServer != nil {
		r.Lifecycle.Register(NewComponent("status-api",
			func(context.Context) error { return r.WebServer.Start() },
			func(context.Context) error { return r.WebServer.Stop() },
		))
	}
	r.Lifecycle.Register(NewComponent("jobs",
		func(context.Context) error {
			if failed := r.JobManager.StartAll(); failed > 0 {
				logger.Warningf("%d background jobs failed to start", failed)
			}
			return nil
		},
		func(context.Context) error { r.JobManager.StopAll(); return nil },
	))
	return r, nil
}

// Start 启动前先对比记录与代理配置，不一致只记录警告
func (r *Runtime) Start(ctx context.Context) error {
	r.CheckConsistency()
	return r.Lifecycle.StartAll(ctx)
}

func (r *Runtime) Stop(ctx context.Context) {
	r.Lifecycle.StopAll(ctx)
}

// RestartBot 用于 SIGHUP：只重启 Telegram Bot
func (r *Runtime) RestartBot(ctx context.Context) error {
	c := r.Lifecycle.Get(botComponent)
	if c == nil {
		return nil
	}
	if err := c.Stop(ctx); err != nil {
		return err
	}
	return c.Start(ctx)
}

// CheckConsistency 记录与代理配置不一致时写一条警告
func (r *Runtime) CheckConsistency() {
	report, err := r.App.Accounts.Reconcile()
	if err != nil {
		logger.Warning("reconcile failed:", err)
		return
	}
	if report.Consistent() {
		return
	}
	logger.Warningf("account records and proxy config disagree: %d missing in config, %d orphan clients, %d label mismatches",
		len(report.MissingInConfig), len(report.Orphans), len(report.LabelMismatch))
}
