package argo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/common"
	"github.com/mayugoro/xray/util/sys"
)

// State 隧道生命周期所处的阶段
type State int

const (
	StateUninstalled State = iota
	StateInstalled
	StateCreated
	StateBound
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateInstalled:
		return "installed"
	case StateCreated:
		return "created"
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options 构建 Controller 的参数
type Options struct {
	BinPath         string
	CredentialsDir  string
	ConfigDir       string
	LocalPort       int
	CommandTimeout  time.Duration
	DownloadTimeout time.Duration
	StopGrace       time.Duration
	QuickRetries    int
	QuickInterval   time.Duration
}

type tracked struct {
	name    string
	proc    Process
	done    chan struct{}
	exitErr error
	started time.Time
}

// Controller 管理 cloudflared 的安装、命名隧道与子进程。
// 停止只针对自己启动并持有句柄的进程，不按进程名批量杀。
type Controller struct {
	opts Options

	Runner     sys.Runner
	Downloader Downloader
	Spawner    Spawner
	// Machine 返回 CPU 架构，默认执行 `uname -m`
	Machine func(ctx context.Context) (string, error)

	mu    sync.Mutex
	state State
	procs map[string]*tracked
}

func NewController(opts Options) *Controller {
	c := &Controller{
		opts:       opts,
		Runner:     sys.ExecRunner{},
		Downloader: NewHTTPDownloader(opts.DownloadTimeout),
		Spawner:    execSpawner{},
		procs:      make(map[string]*tracked),
	}
	c.Machine = c.unameMachine
	if c.isInstalled() {
		c.state = StateInstalled
	}
	return c
}

func (c *Controller) unameMachine(ctx context.Context) (string, error) {
	stdout, stderr, err := c.Runner.Run(ctx, "uname", "-m")
	if err != nil {
		return "", errors.New(sys.CommandDetail(stdout, stderr, err))
	}
	return strings.TrimSpace(string(stdout)), nil
}

func (c *Controller) isInstalled() bool {
	info, err := os.Stat(c.opts.BinPath)
	return err == nil && !info.IsDir()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State 有被跟踪的进程在运行时为 running
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.procs {
		select {
		case <-t.done:
		default:
			return StateRunning
		}
	}
	if c.state == StateRunning {
		return StateStopped
	}
	return c.state
}

// EnsureInstalled 已安装时直接返回 true；否则按架构下载到临时文件、赋予执行权限后原子替换
func (c *Controller) EnsureInstalled(ctx context.Context) (bool, error) {
	const op = "Argo.EnsureInstalled"
	if c.isInstalled() {
		c.mu.Lock()
		if c.state == StateUninstalled {
			c.state = StateInstalled
		}
		c.mu.Unlock()
		return true, nil
	}

	machine, err := c.Machine(ctx)
	if err != nil {
		return false, common.NewServiceError(op, fmt.Errorf("detect architecture: %w", err)).WithCode(common.ErrCodeExternal)
	}
	url, err := DownloadURL(machine)
	if err != nil {
		return false, common.NewServiceError(op, err).WithCode(common.ErrCodeUnsupportedArch)
	}

	dir := filepath.Dir(c.opts.BinPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, common.NewServiceError(op, err).WithCode(common.ErrCodeInternal)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(c.opts.BinPath)+".download")
	defer func() { _ = os.Remove(tmp) }()

	logger.Infof("downloading cloudflared from %s", url)
	if err := c.Downloader.Download(ctx, url, tmp); err != nil {
		return false, common.NewServiceError(op, err).WithCode(common.ErrCodeExternal)
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		return false, common.NewServiceError(op, err).WithCode(common.ErrCodeInternal)
	}
	if err := os.Rename(tmp, c.opts.BinPath); err != nil {
		return false, common.NewServiceError(op, err).WithCode(common.ErrCodeInternal)
	}
	c.setState(StateInstalled)
	logger.Infof("cloudflared installed at %s", c.opts.BinPath)
	return false, nil
}

func (c *Controller) run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CommandTimeout)
	defer cancel()
	return c.Runner.Run(ctx, c.opts.BinPath, args...)
}

// provision 执行创建类命令，stderr 含 "already exists" 视为已存在
func (c *Controller) provision(ctx context.Context, op, what string, args ...string) error {
	stdout, stderr, err := c.run(ctx, args...)
	if err == nil {
		return nil
	}
	if strings.Contains(string(stderr), "already exists") {
		return common.NewServiceError(op, fmt.Errorf("%s: %w", what, common.ErrAlreadyExists)).WithCode(common.ErrCodeAlreadyExists)
	}
	return common.NewServiceError(op, errors.New(sys.CommandDetail(stdout, stderr, err))).WithCode(common.ErrCodeExternal)
}

// Create 创建命名隧道，已存在视为成功
func (c *Controller) Create(ctx context.Context, name string) error {
	err := c.provision(ctx, "Argo.Create", "tunnel "+name, "tunnel", "create", name)
	if err == nil || errors.Is(err, common.ErrAlreadyExists) {
		c.advance(StateCreated)
	}
	return err
}

// BindDomain 为隧道创建 DNS 路由，已存在视为成功
func (c *Controller) BindDomain(ctx context.Context, name, domain string) error {
	err := c.provision(ctx, "Argo.BindDomain", "domain "+domain, "tunnel", "route", "dns", name, domain)
	if err == nil || errors.Is(err, common.ErrAlreadyExists) {
		c.advance(StateBound)
	}
	return err
}

func (c *Controller) advance(s State) {
	c.mu.Lock()
	if c.state < s || c.state == StateStopped {
		c.state = s
	}
	c.mu.Unlock()
}

// Delete 停止本地进程后执行 cleanup 与 delete
func (c *Controller) Delete(ctx context.Context, name string) error {
	const op = "Argo.Delete"
	if err := c.Stop(name); err != nil && !errors.Is(err, common.ErrNotFound) {
		logger.Warningf("stop tunnel %s before delete: %v", name, err)
	}
	if _, stderr, err := c.run(ctx, "tunnel", "cleanup", name); err != nil {
		logger.Warningf("cloudflared cleanup %s: %s", name, strings.TrimSpace(string(stderr)))
	}
	stdout, stderr, err := c.run(ctx, "tunnel", "delete", name)
	if err != nil {
		return common.NewServiceError(op, errors.New(sys.CommandDetail(stdout, stderr, err))).WithCode(common.ErrCodeExternal)
	}
	c.setState(StateInstalled)
	return nil
}

// List 返回 `cloudflared tunnel list` 的原始输出
func (c *Controller) List(ctx context.Context) (string, error) {
	stdout, stderr, err := c.run(ctx, "tunnel", "list")
	if err != nil {
		return "", common.NewServiceError("Argo.List", errors.New(sys.CommandDetail(stdout, stderr, err))).WithCode(common.ErrCodeExternal)
	}
	return string(stdout), nil
}

// Info 返回 `cloudflared tunnel info` 的原始输出
func (c *Controller) Info(ctx context.Context, name string) (string, error) {
	stdout, stderr, err := c.run(ctx, "tunnel", "info", name)
	if err != nil {
		return "", common.NewServiceError("Argo.Info", errors.New(sys.CommandDetail(stdout, stderr, err))).WithCode(common.ErrCodeExternal)
	}
	return string(stdout), nil
}

// ResolveTunnelID 从 `tunnel list` 输出中取隧道 ID（行首字段）。
// 优先匹配 NAME 列完全相同的行，没有时退回第一条包含隧道名的行
func ResolveTunnelID(listing, name string) (string, error) {
	lines := strings.Split(listing, "\n")
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return fields[0], nil
		}
	}
	for _, line := range lines {
		if !strings.Contains(line, name) {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			return fields[0], nil
		}
	}
	return "", fmt.Errorf("tunnel %q: %w", name, common.ErrTunnelIDNotFound)
}

// ConfigPath 隧道运行配置的路径
func (c *Controller) ConfigPath(name string) string {
	return filepath.Join(c.opts.ConfigDir, "argo_"+name+".yaml")
}

// Start 解析隧道 ID、写入 ingress 配置并在后台运行隧道，进程句柄由 Controller 持有
func (c *Controller) Start(ctx context.Context, name, domain string) error {
	const op = "Argo.Start"
	if c.isRunning(name) {
		return common.NewServiceError(op, fmt.Errorf("tunnel %s is running: %w", name, common.ErrAlreadyExists)).WithCode(common.ErrCodeAlreadyExists)
	}

	listing, err := c.List(ctx)
	if err != nil {
		return err
	}
	tunnelID, err := ResolveTunnelID(listing, name)
	if err != nil {
		return common.NewServiceError(op, err).WithCode(common.ErrCodeTunnelIDNotFound)
	}

	cfgPath := c.ConfigPath(name)
	ingress := NewIngressConfig(tunnelID, c.opts.CredentialsDir, domain, c.opts.LocalPort)
	if err := ingress.WriteFile(cfgPath); err != nil {
		return common.NewServiceError(op, err).WithCode(common.ErrCodeInternal)
	}

	proc, err := c.Spawner.Spawn(c.opts.BinPath, "tunnel", "--config", cfgPath, "run", name)
	if err != nil {
		return common.NewServiceError(op, err).WithCode(common.ErrCodeExternal)
	}
	t := c.track(name, proc)
	go drain(t.name, proc)
	logger.Infof("tunnel %s (%s) started, pid %d", name, tunnelID, proc.Pid())
	return nil
}

func (c *Controller) isRunning(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.procs[name]
	if !ok {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

func (c *Controller) track(name string, proc Process) *tracked {
	t := &tracked{name: name, proc: proc, done: make(chan struct{}), started: time.Now()}
	c.mu.Lock()
	c.procs[name] = t
	c.state = StateRunning
	c.mu.Unlock()

	go func() {
		t.exitErr = proc.Wait()
		close(t.done)
		if t.exitErr != nil {
			logger.Warningf("cloudflared %s exited: %v", name, t.exitErr)
		} else {
			logger.Infof("cloudflared %s exited", name)
		}
	}()
	return t
}

// drain 持续读取子进程输出，避免管道写满阻塞 cloudflared
func drain(name string, proc Process) {
	scanner := bufio.NewScanner(proc.Output())
	for scanner.Scan() {
		logger.Debugf("[cloudflared %s] %s", name, scanner.Text())
	}
}

// Stop 向被跟踪的进程发送 SIGTERM，超过宽限期后强制结束
func (c *Controller) Stop(name string) error {
	c.mu.Lock()
	t, ok := c.procs[name]
	if ok {
		delete(c.procs, name)
	}
	c.mu.Unlock()
	if !ok {
		return common.NewServiceError("Argo.Stop", fmt.Errorf("tunnel %s is not running: %w", name, common.ErrNotFound)).WithCode(common.ErrCodeNotFound)
	}

	select {
	case <-t.done:
		return nil
	default:
	}

	if err := t.proc.Signal(syscall.SIGTERM); err != nil {
		logger.Warningf("SIGTERM cloudflared %s: %v", name, err)
	}
	select {
	case <-t.done:
	case <-time.After(c.opts.StopGrace):
		logger.Warningf("cloudflared %s did not exit in %s, killing", name, c.opts.StopGrace)
		_ = t.proc.Kill()
		<-t.done
	}
	logger.Infof("tunnel %s stopped", name)
	return nil
}

// StopAll 停止全部被跟踪的进程，返回停止的名称
func (c *Controller) StopAll() []string {
	c.mu.Lock()
	names := make([]string, 0, len(c.procs))
	for name := range c.procs {
		names = append(names, name)
	}
	c.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		if err := c.Stop(name); err != nil {
			logger.Warningf("stop tunnel %s: %v", name, err)
		}
	}
	c.mu.Lock()
	if c.state == StateRunning {
		c.state = StateStopped
	}
	c.mu.Unlock()
	return names
}

// Running 当前仍在运行的进程
type Running struct {
	Name    string    `json:"name"`
	Pid     int       `json:"pid"`
	Started time.Time `json:"started"`
}

func (c *Controller) Running() []Running {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Running
	for _, t := range c.procs {
		select {
		case <-t.done:
			continue
		default:
		}
		out = append(out, Running{Name: t.name, Pid: t.proc.Pid(), Started: t.started})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
