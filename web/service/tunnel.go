package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mayugoro/xray/argo"
	"github.com/mayugoro/xray/config"
	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/common"
)

// TunnelController cloudflared 控制器需要暴露给 bot 的操作
type TunnelController interface {
	State() argo.State
	EnsureInstalled(ctx context.Context) (bool, error)
	Create(ctx context.Context, name string) error
	BindDomain(ctx context.Context, name, domain string) error
	Start(ctx context.Context, name, domain string) error
	Stop(name string) error
	StopAll() []string
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) (string, error)
	QuickTunnel() (string, error)
	Running() []argo.Running
}

// TunnelStatus 隧道当前状态
type TunnelStatus struct {
	State     string         `json:"state"`
	Name      string         `json:"name"`
	Domain    string         `json:"domain"`
	QuickHost string         `json:"quick_host,omitempty"`
	Running   []argo.Running `json:"running"`
}

// TunnelService 把命名隧道的安装、创建、绑定与启动串成一个流程
type TunnelService struct {
	cfg  *config.Config
	ctrl TunnelController

	mu        sync.RWMutex
	quickHost string
}

func NewTunnelService(cfg *config.Config, ctrl TunnelController) *TunnelService {
	return &TunnelService{cfg: cfg, ctrl: ctrl}
}

// Install 确保 cloudflared 已安装
func (s *TunnelService) Install(ctx context.Context) common.Result {
	already, err := s.ctrl.EnsureInstalled(ctx)
	if err != nil {
		return common.Failure(err)
	}
	if already {
		return common.Success("cloudflared is already installed")
	}
	return common.Success("cloudflared installed")
}

// Setup 安装、创建隧道、绑定域名（如已配置）并启动。任一步失败即停止，Detail 中列出已完成的步骤。
func (s *TunnelService) Setup(ctx context.Context) common.Result {
	name, domain := s.cfg.TunnelName, s.cfg.ArgoDomain
	var steps []string

	fail := func(err error) common.Result {
		r := common.Failure(err)
		if len(steps) > 0 {
			r.Detail = strings.Join(steps, "\n") + "\n" + r.Detail
		}
		return r
	}
	note := func(err error, ok string) {
		if errors.Is(err, common.ErrAlreadyExists) {
			steps = append(steps, ok+" (already exists)")
			return
		}
		steps = append(steps, ok)
	}

	if _, err := s.ctrl.EnsureInstalled(ctx); err != nil {
		return fail(err)
	}
	steps = append(steps, "cloudflared installed")

	err := s.ctrl.Create(ctx, name)
	if err != nil && !errors.Is(err, common.ErrAlreadyExists) {
		return fail(err)
	}
	note(err, "tunnel "+name+" created")

	if domain != "" {
		err = s.ctrl.BindDomain(ctx, name, domain)
		if err != nil && !errors.Is(err, common.ErrAlreadyExists) {
			return fail(err)
		}
		note(err, "domain "+domain+" bound")
	}

	err = s.ctrl.Start(ctx, name, domain)
	if err != nil && !errors.Is(err, common.ErrAlreadyExists) {
		return fail(err)
	}
	note(err, "tunnel "+name+" running")

	logger.Infof("tunnel %s ready for %s", name, domain)
	return common.Success(strings.Join(steps, "\n"))
}

// Quick 启动临时隧道，成功时 Detail 为分配到的 https 地址
func (s *TunnelService) Quick(ctx context.Context) common.Result {
	if _, err := s.ctrl.EnsureInstalled(ctx); err != nil {
		return common.Failure(err)
	}
	url, err := s.ctrl.QuickTunnel()
	if err != nil {
		s.setQuickHost("")
		return common.Failure(err)
	}
	s.setQuickHost(strings.TrimPrefix(url, "https://"))
	return common.Success(url)
}

// Stop 停止所有本进程启动的隧道
func (s *TunnelService) Stop() common.Result {
	stopped := s.ctrl.StopAll()
	s.setQuickHost("")
	if len(stopped) == 0 {
		return common.Success("no tunnel was running")
	}
	return common.Success("stopped: " + strings.Join(stopped, ", "))
}

// Delete 删除配置的命名隧道
func (s *TunnelService) Delete(ctx context.Context) common.Result {
	return common.ResultOf(s.ctrl.Delete(ctx, s.cfg.TunnelName), fmt.Sprintf("tunnel %s deleted", s.cfg.TunnelName))
}

// List `cloudflared tunnel list` 的输出
func (s *TunnelService) List(ctx context.Context) common.Result {
	out, err := s.ctrl.List(ctx)
	if err != nil {
		return common.Failure(err)
	}
	return common.Success(strings.TrimSpace(out))
}

func (s *TunnelService) Status() TunnelStatus {
	return TunnelStatus{
		State:     s.ctrl.State().String(),
		Name:      s.cfg.TunnelName,
		Domain:    s.cfg.ArgoDomain,
		QuickHost: s.ActiveDomain(),
		Running:   s.ctrl.Running(),
	}
}

// ActiveDomain 临时隧道运行中时返回其域名
func (s *TunnelService) ActiveDomain() string {
	s.mu.RLock()
	host := s.quickHost
	s.mu.RUnlock()
	if host == "" {
		return ""
	}
	for _, r := range s.ctrl.Running() {
		if r.Name == argo.QuickTunnelName {
			return host
		}
	}
	return ""
}

func (s *TunnelService) setQuickHost(host string) {
	s.mu.Lock()
	s.quickHost = host
	s.mu.Unlock()
}
