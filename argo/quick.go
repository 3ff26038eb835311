package argo

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/common"
)

// QuickTunnelName 临时隧道在进程表中的名称
const QuickTunnelName = "quick"

var quickURLRe = regexp.MustCompile(`https://[\w-]+\.trycloudflare\.com`)

// QuickTunnel 启动临时隧道，从 cloudflared 的输出流中等待分配的 trycloudflare 域名。
// 等待上限为 QuickRetries × QuickInterval；超时会结束该进程，进程提前退出同样失败。
// 成功后进程继续运行，可用 Stop(QuickTunnelName) 停止。
func (c *Controller) QuickTunnel() (string, error) {
	const op = "Argo.QuickTunnel"
	if c.isRunning(QuickTunnelName) {
		if err := c.Stop(QuickTunnelName); err != nil {
			logger.Warningf("stop previous quick tunnel: %v", err)
		}
	}

	proc, err := c.Spawner.Spawn(c.opts.BinPath, "tunnel", "--url", fmt.Sprintf("http://localhost:%d", c.opts.LocalPort))
	if err != nil {
		return "", common.NewServiceError(op, err).WithCode(common.ErrCodeExternal)
	}
	t := c.track(QuickTunnelName, proc)

	found := make(chan string, 1)
	tail := newLineRing(5)
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(proc.Output())
		sent := false
		for scanner.Scan() {
			line := scanner.Text()
			if !sent {
				tail.add(line)
				if url := quickURLRe.FindString(line); url != "" {
					found <- url
					sent = true
				}
			}
			logger.Debugf("[cloudflared quick] %s", line)
		}
	}()

	budget := time.Duration(c.opts.QuickRetries) * c.opts.QuickInterval
	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case url := <-found:
		logger.Infof("quick tunnel ready: %s", url)
		return url, nil
	case <-t.done:
		select {
		case <-scanDone:
		case <-time.After(time.Second):
		}
		c.forget(QuickTunnelName, t)
		detail := tail.String()
		if detail == "" && t.exitErr != nil {
			detail = t.exitErr.Error()
		}
		return "", common.NewServiceError(op, fmt.Errorf("cloudflared exited before a hostname was assigned: %s", detail)).WithCode(common.ErrCodeExternal)
	case <-timer.C:
		if err := c.Stop(QuickTunnelName); err != nil {
			logger.Warningf("stop quick tunnel after timeout: %v", err)
		}
		return "", common.NewServiceError(op, fmt.Errorf("no trycloudflare hostname after %s: %w", budget, common.ErrTimeout)).WithCode(common.ErrCodeTimeout)
	}
}

func (c *Controller) forget(name string, t *tracked) {
	c.mu.Lock()
	if c.procs[name] == t {
		delete(c.procs, name)
	}
	c.mu.Unlock()
}

type lineRing struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newLineRing(max int) *lineRing {
	return &lineRing{max: max}
}

func (r *lineRing) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == r.max {
		r.lines = r.lines[1:]
	}
	r.lines = append(r.lines, line)
}

func (r *lineRing) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.TrimSpace(strings.Join(r.lines, "\n"))
}
