package xray

import (
	"context"
	"errors"
	"time"

	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/sys"
)

// Reloader 让守护进程重新加载配置
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloadError 重载失败，Detail 为守护进程的原始输出
type ReloadError struct {
	Detail string
}

func (e *ReloadError) Error() string {
	return e.Detail
}

// SystemdReloader 通过 systemctl restart 重启 xray 服务
type SystemdReloader struct {
	Service string
	Timeout time.Duration
	Runner  sys.Runner
}

func NewSystemdReloader(service string, timeout time.Duration) *SystemdReloader {
	return &SystemdReloader{Service: service, Timeout: timeout, Runner: sys.ExecRunner{}}
}

func (r *SystemdReloader) Reload(ctx context.Context) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	stdout, stderr, err := r.Runner.Run(ctx, "systemctl", "restart", r.Service)
	if err != nil {
		detail := sys.CommandDetail(stdout, stderr, err)
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "systemctl restart " + r.Service + ": timed out"
		}
		logger.Warningf("reload %s failed: %s", r.Service, detail)
		return &ReloadError{Detail: detail}
	}
	logger.Infof("%s restarted", r.Service)
	return nil
}
