package bootstrap

import (
	"time"

	"github.com/mayugoro/xray/web/job"
)

const (
	hashCleanupSpec      = "@every 2m"
	rateLimitCleanupSpec = "@every 10m"
)

// RegisterJobs 注册所有后台任务到 JobManager
func RegisterJobs(jobManager *job.Manager, app *App, limiters ...job.RateLimiterProvider) error {
	sched := job.NewScheduler(time.Local)

	// 账户到期提醒
	if err := sched.AddJob(app.Config.ExpiryCron, job.NewExpiryNotifyJob(app.Accounts, app.TgBot)); err != nil {
		return err
	}
	if err := sched.AddJob(hashCleanupSpec, job.NewCheckHashStorageJob(app.TgBot)); err != nil {
		return err
	}
	limiters = append([]job.RateLimiterProvider{app.TgBot}, limiters...)
	if err := sched.AddJob(rateLimitCleanupSpec, job.NewRateLimitCleanupJob(limiters...)); err != nil {
		return err
	}
	jobManager.Register(sched)

	// access log 在线状态
	if app.Streamer != nil {
		jobManager.Register(app.Streamer)
	}
	return nil
}
