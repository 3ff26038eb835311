package job

import (
	"sync"

	"github.com/mayugoro/xray/logger"
)

type Manager struct {
	jobs []Job
	mu   sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		jobs: make([]Job, 0),
	}
}

func (m *Manager) Register(job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	logger.Debugf("registered job: %s", job.Name())
}

// StartAll 按注册顺序启动，单个任务失败只记录日志；返回启动失败的任务数
func (m *Manager) StartAll() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	failed := 0
	for _, job := range m.jobs {
		if err := job.Start(); err != nil {
			failed++
			logger.Errorf("failed to start job %s: %v", job.Name(), err)
			continue
		}
		logger.Infof("job %s started", job.Name())
	}
	return failed
}

// StopAll 并行停止所有任务
func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, j := range m.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			if err := job.Stop(); err != nil {
				logger.Errorf("failed to stop job %s: %v", job.Name(), err)
				return
			}
			logger.Debugf("job %s stopped", job.Name())
		}(j)
	}
	wg.Wait()
	logger.Info("all background jobs stopped")
}
