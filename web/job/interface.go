package job

// Job 后台任务的统一接口，由 Manager 统一启停
type Job interface {
	// Start 非阻塞地启动任务
	Start() error
	// Stop 停止任务并等待其退出
	Stop() error
	Name() string
}
