package bootstrap

import (
	"context"
	"sync"

	"github.com/mayugoro/xray/logger"
)

type Status int

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() Status
}

// funcComponent 用一对函数实现 Component，stop 可以为 nil
type funcComponent struct {
	name  string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error

	mu     sync.Mutex
	status Status
}

func NewComponent(name string, start, stop func(ctx context.Context) error) Component {
	return &funcComponent{name: name, start: start, stop: stop}
}

func (c *funcComponent) Name() string { return c.name }

func (c *funcComponent) Start(ctx context.Context) error {
	c.setStatus(StatusStarting)
	if c.start != nil {
		if err := c.start(ctx); err != nil {
			c.setStatus(StatusStopped)
			return err
		}
	}
	c.setStatus(StatusRunning)
	return nil
}

func (c *funcComponent) Stop(ctx context.Context) error {
	if c.Status() == StatusStopped {
		return nil
	}
	c.setStatus(StatusStopping)
	defer c.setStatus(StatusStopped)
	if c.stop == nil {
		return nil
	}
	return c.stop(ctx)
}

func (c *funcComponent) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *funcComponent) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

type LifecycleManager struct {
	mu         sync.Mutex
	components []Component
}

func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		components: make([]Component, 0),
	}
}

func (m *LifecycleManager) Register(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, c)
	logger.Debugf("[Lifecycle] Registered component: %s", c.Name())
}

// StartAll 按注册顺序启动，失败时逆序停止已启动的组件
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.components {
		logger.Infof("[Lifecycle] Starting component: %s", c.Name())
		if err := c.Start(ctx); err != nil {
			logger.Errorf("[Lifecycle] Failed to start component %s: %v", c.Name(), err)
			m.stopRange(ctx, i-1)
			return err
		}
	}
	return nil
}

func (m *LifecycleManager) StopAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopRange(ctx, len(m.components)-1)
}

// Get 按名称查找组件
func (m *LifecycleManager) Get(name string) Component {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func (m *LifecycleManager) stopRange(ctx context.Context, last int) {
	for i := last; i >= 0; i-- {
		c := m.components[i]
		if c.Status() == StatusStopped {
			continue
		}
		logger.Infof("[Lifecycle] Stopping component: %s", c.Name())

		stopDone := make(chan error, 1)
		go func() {
			stopDone <- c.Stop(ctx)
		}()

		select {
		case err := <-stopDone:
			if err != nil {
				logger.Errorf("[Lifecycle] Error stopping component %s: %v", c.Name(), err)
			}
		case <-ctx.Done():
			logger.Errorf("[Lifecycle] Timeout stopping component %s", c.Name())
		}
	}
}
