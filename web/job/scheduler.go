package job

import (
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/mayugoro/xray/logger"
)

// cronLogger 把 cron 的日志转到 logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugf("[Cron] %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorf("[PANIC RECOVER] [Cron] %s: %v %v", msg, err, keysAndValues)
}

// Scheduler 以 Job 的形式管理 cron 定时任务，任务 panic 会被恢复并记录
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	started bool
}

func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

// AddJob spec 支持标准五段式与 @every/@daily 等描述符
func (s *Scheduler) AddJob(spec string, j cron.Job) error {
	_, err := s.cron.AddJob(spec, j)
	return err
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Name() string { return "scheduler" }

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.cron.Start()
	s.started = true
	return nil
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	<-s.cron.Stop().Done()
	s.started = false
	return nil
}
